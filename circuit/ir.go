package circuit

import (
	"encoding/json"

	"github.com/pkg/errors"

	"tensorq/backend"
	"tensorq/gates"
)

// ComplexMatrix carries a flattened row-major complex matrix through JSON
// as [re, im] pairs.
type ComplexMatrix []complex128

// MarshalJSON encodes each element as a two-element array.
func (m ComplexMatrix) MarshalJSON() ([]byte, error) {
	pairs := make([][2]float64, len(m))
	for i, v := range m {
		pairs[i] = [2]float64{real(v), imag(v)}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON decodes two-element arrays back into complex values.
func (m *ComplexMatrix) UnmarshalJSON(data []byte) error {
	var pairs [][2]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	out := make(ComplexMatrix, len(pairs))
	for i, p := range pairs {
		out[i] = complex(p[0], p[1])
	}
	*m = out
	return nil
}

// Instruction is one operation in the circuit's intermediate representation.
// Gates the registry can rebuild from name and params travel without their
// matrix; everything else (custom unitaries, exp gates, projectors, branch
// operators, channel superoperators) carries it explicitly.
type Instruction struct {
	Gate       string        `json:"gate"`
	Qubits     []int         `json:"qubits"`
	Params     []float64     `json:"params,omitempty"`
	Controls   []int         `json:"controls,omitempty"`
	CtrlStates []int         `json:"ctrl_states,omitempty"`
	Kind       string        `json:"kind,omitempty"`
	Matrix     ComplexMatrix `json:"matrix,omitempty"`
}

// irEnvelope is the on-disk JSON form of a circuit.
type irEnvelope struct {
	NumQubits    int           `json:"nqubits"`
	Instructions []Instruction `json:"instructions"`
}

// kindString returns the wire name of a kind; unitary stays empty so the
// common case serializes without a kind field.
func kindString(k opKind) string {
	switch k {
	case opProject:
		return "project"
	case opBranch:
		return "branch"
	case opChannel:
		return "channel"
	}
	return ""
}

func parseKind(s string) (opKind, error) {
	switch s {
	case "", "unitary":
		return opUnitary, nil
	case "project":
		return opProject, nil
	case "branch":
		return opBranch, nil
	case "channel":
		return opChannel, nil
	}
	return 0, backend.Constructionf("circuit.FromIR", "unknown instruction kind %q", s)
}

func instructionOf(op operation) Instruction {
	ins := Instruction{
		Gate:       op.name,
		Qubits:     append([]int(nil), op.qubits...),
		Params:     append([]float64(nil), op.params...),
		Controls:   append([]int(nil), op.controls...),
		CtrlStates: append([]int(nil), op.states...),
		Kind:       kindString(op.kind),
	}
	if op.kind != opUnitary || !gates.Registered(op.name) {
		ins.Matrix = ComplexMatrix(op.g.Matrix())
	}
	return ins
}

// IR returns the circuit's operations as an ordered instruction list.
func (c *Circuit) IR() []Instruction {
	out := make([]Instruction, len(c.ops))
	for i, op := range c.ops {
		out[i] = instructionOf(op)
	}
	return out
}

// IR returns the circuit's operations as an ordered instruction list.
// Channels appear with their superoperator matrix.
func (d *DMCircuit) IR() []Instruction {
	out := make([]Instruction, len(d.ops))
	for i, op := range d.ops {
		out[i] = instructionOf(op)
	}
	return out
}

// FromIR rebuilds a pure-state circuit from an instruction sequence.
func FromIR(n int, irs []Instruction, opts ...Option) (*Circuit, error) {
	c, err := New(n, opts...)
	if err != nil {
		return nil, err
	}
	for i, ins := range irs {
		if err := c.applyInstruction(ins); err != nil {
			return nil, errors.Wrapf(err, "instruction %d (%s)", i, ins.Gate)
		}
	}
	return c, nil
}

// FromDMIR rebuilds a density-matrix circuit from an instruction sequence,
// including channel instructions.
func FromDMIR(n int, irs []Instruction, opts ...Option) (*DMCircuit, error) {
	d, err := NewDM(n, opts...)
	if err != nil {
		return nil, err
	}
	for i, ins := range irs {
		if err := d.applyInstruction(ins); err != nil {
			return nil, errors.Wrapf(err, "instruction %d (%s)", i, ins.Gate)
		}
	}
	return d, nil
}

// instructionOp turns a non-channel instruction back into an operation, or
// returns ok=false when the registry path (ApplyGate) should handle it.
func instructionOp(ins Instruction, kind opKind) (operation, bool, error) {
	if kind == opUnitary && len(ins.Matrix) == 0 {
		return operation{}, false, nil
	}
	nq := len(ins.Controls) + len(ins.Qubits)
	g, err := gates.New(ins.Gate, nq, ins.Matrix)
	if err != nil {
		return operation{}, false, err
	}
	return operation{
		name:     ins.Gate,
		qubits:   append([]int(nil), ins.Qubits...),
		controls: append([]int(nil), ins.Controls...),
		states:   append([]int(nil), ins.CtrlStates...),
		params:   append([]float64(nil), ins.Params...),
		kind:     kind,
		g:        g,
	}, true, nil
}

func gateOptions(ins Instruction) []GateOption {
	var gopts []GateOption
	if len(ins.Params) > 0 {
		gopts = append(gopts, Params(ins.Params...))
	}
	if len(ins.Controls) > 0 {
		gopts = append(gopts, Controls(ins.Controls...))
		if len(ins.CtrlStates) > 0 {
			gopts = append(gopts, ControlStates(ins.CtrlStates...))
		}
	}
	return gopts
}

func (c *Circuit) applyInstruction(ins Instruction) error {
	kind, err := parseKind(ins.Kind)
	if err != nil {
		return err
	}
	if kind == opChannel {
		return backend.NotSupportedf("circuit.FromIR", "channel instructions need a density-matrix circuit")
	}
	op, direct, err := instructionOp(ins, kind)
	if err != nil {
		return err
	}
	if direct {
		return c.applyOp(op)
	}
	return c.ApplyGate(ins.Gate, ins.Qubits, gateOptions(ins)...)
}

func (d *DMCircuit) applyInstruction(ins Instruction) error {
	kind, err := parseKind(ins.Kind)
	if err != nil {
		return err
	}
	if kind == opChannel {
		qs, err := normalizeQubits("circuit.FromDMIR", ins.Qubits, d.n)
		if err != nil {
			return err
		}
		g, err := gates.New(ins.Gate, 2*len(qs), ins.Matrix)
		if err != nil {
			return err
		}
		d.ops = append(d.ops, operation{name: ins.Gate, qubits: qs, kind: opChannel, g: g})
		d.invalidate()
		return nil
	}
	op, direct, err := instructionOp(ins, kind)
	if err != nil {
		return err
	}
	if direct {
		return d.applyOp(op)
	}
	return d.ApplyGate(ins.Gate, ins.Qubits, gateOptions(ins)...)
}

// ToJSON serializes the register size and instruction list.
func (c *Circuit) ToJSON() ([]byte, error) {
	return json.MarshalIndent(irEnvelope{NumQubits: c.n, Instructions: c.IR()}, "", "  ")
}

// FromJSON rebuilds a pure-state circuit from ToJSON output.
func FromJSON(data []byte, opts ...Option) (*Circuit, error) {
	var env irEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decode circuit JSON")
	}
	return FromIR(env.NumQubits, env.Instructions, opts...)
}

// ToJSON serializes the register size and instruction list.
func (d *DMCircuit) ToJSON() ([]byte, error) {
	return json.MarshalIndent(irEnvelope{NumQubits: d.n, Instructions: d.IR()}, "", "  ")
}

// FromDMJSON rebuilds a density-matrix circuit from ToJSON output.
func FromDMJSON(data []byte, opts ...Option) (*DMCircuit, error) {
	var env irEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, "decode circuit JSON")
	}
	return FromDMIR(env.NumQubits, env.Instructions, opts...)
}

// GateCount returns the number of recorded operations, restricted to the
// given gate names (aliases resolve) when any are passed.
func (c *Circuit) GateCount(names ...string) int { return opsCount(c.ops, names) }

// GateSummary returns per-gate operation counts keyed by recorded name.
func (c *Circuit) GateSummary() map[string]int { return opsSummary(c.ops) }

// Depth returns the length of the longest chain of operations over shared
// wires.
func (c *Circuit) Depth() int { return opsDepth(c.ops, c.n) }

// GateCount returns the number of recorded operations, restricted to the
// given gate names (aliases resolve) when any are passed.
func (d *DMCircuit) GateCount(names ...string) int { return opsCount(d.ops, names) }

// GateSummary returns per-gate operation counts keyed by recorded name.
func (d *DMCircuit) GateSummary() map[string]int { return opsSummary(d.ops) }

// Depth returns the length of the longest chain of operations over shared
// wires.
func (d *DMCircuit) Depth() int { return opsDepth(d.ops, d.n) }

func opsCount(ops []operation, names []string) int {
	if len(names) == 0 {
		return len(ops)
	}
	want := make(map[string]bool, len(names))
	for _, nm := range names {
		want[gates.Canonical(nm)] = true
	}
	count := 0
	for _, op := range ops {
		if want[op.name] {
			count++
		}
	}
	return count
}

func opsSummary(ops []operation) map[string]int {
	out := make(map[string]int, len(ops))
	for _, op := range ops {
		out[op.name]++
	}
	return out
}

func opsDepth(ops []operation, n int) int {
	front := make([]int, n)
	depth := 0
	for _, op := range ops {
		d := 0
		for _, w := range op.wires() {
			if front[w] > d {
				d = front[w]
			}
		}
		d++
		for _, w := range op.wires() {
			front[w] = d
		}
		if d > depth {
			depth = d
		}
	}
	return depth
}
