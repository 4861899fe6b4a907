package main

import (
	"math/rand"
	"slices"

	"github.com/pkg/errors"

	"tensorq/circuit"
	"tensorq/gates"
)

// cellKind says what a grid cell compiles to.
type cellKind int

const (
	cellGate cellKind = iota
	cellProject
	cellCollapse
	cellNoise
	cellBarrier
)

// placed is one operation pinned to a timeline step. Qubits lists the wires
// in engine order, so controlled registry gates carry their control wire
// first. Controls holds extra control wires layered on top of the named gate
// (these only arise from loaded instruction lists).
type placed struct {
	Name     string
	Kind     cellKind
	Step     int
	Qubits   []int
	Controls []int
	States   []int
	Params   []float64
}

// wires returns every wire the cell occupies. Barriers occupy none and span
// the whole register visually.
func (p *placed) wires() []int {
	if p.Kind == cellBarrier {
		return nil
	}
	return append(append([]int{}, p.Controls...), p.Qubits...)
}

func (p *placed) references(qubit int) bool {
	return slices.Contains(p.Qubits, qubit) || slices.Contains(p.Controls, qubit)
}

// keep returns the retained basis state of a projection cell.
func (p *placed) keep() int {
	if len(p.Params) > 0 && p.Params[0] == 1 {
		return 1
	}
	return 0
}

// grid is the editable circuit: cells pinned to steps over a fixed register.
// It compiles three ways: a deterministic skeleton for the JSON pane, a
// stochastic trajectory for the live view, and a density-matrix instruction
// list for exact noisy simulation.
type grid struct {
	qubits int
	cells  []placed
}

func newGrid(n int) *grid {
	return &grid{qubits: n}
}

// at returns the cell occupying (step, qubit), or nil. Barriers are reported
// through cellInfo instead since they span all wires.
func (g *grid) at(step, qubit int) *placed {
	for i := range g.cells {
		p := &g.cells[i]
		if p.Step == step && p.references(qubit) {
			return p
		}
	}
	return nil
}

// canPlace reports whether every wire is free at the given step.
func (g *grid) canPlace(step int, wires []int) bool {
	for _, w := range wires {
		if w < 0 || w >= g.qubits {
			return false
		}
		if g.at(step, w) != nil {
			return false
		}
	}
	return true
}

// place appends the cell when its wires are free. Barriers replace any
// barrier already on the step.
func (g *grid) place(p placed) bool {
	if p.Kind == cellBarrier {
		g.cells = slices.DeleteFunc(g.cells, func(q placed) bool {
			return q.Step == p.Step && q.Kind == cellBarrier
		})
		g.cells = append(g.cells, p)
		return true
	}
	if !g.canPlace(p.Step, p.wires()) {
		return false
	}
	g.cells = append(g.cells, p)
	return true
}

// removeAt removes the cell occupying (step, qubit) and any barrier on the
// step.
func (g *grid) removeAt(step, qubit int) {
	g.cells = slices.DeleteFunc(g.cells, func(p placed) bool {
		if p.Step == step && p.Kind == cellBarrier {
			return true
		}
		return p.Step == step && p.references(qubit)
	})
}

// removeQubit drops every cell touching the given wire, used when the
// register shrinks.
func (g *grid) removeQubit(qubit int) {
	g.cells = slices.DeleteFunc(g.cells, func(p placed) bool {
		return p.references(qubit)
	})
}

func (g *grid) maxStep() int {
	m := -1
	for i := range g.cells {
		m = max(m, g.cells[i].Step)
	}
	return m
}

// ordered returns the compile-relevant cells in timeline order. Cells on the
// same step never share wires, so insertion order breaks ties.
func (g *grid) ordered() []placed {
	out := make([]placed, 0, len(g.cells))
	for _, p := range g.cells {
		if p.Kind != cellBarrier {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b placed) int { return a.Step - b.Step })
	return out
}

// stochastic reports whether any cell draws randomness during compilation.
func (g *grid) stochastic() bool {
	for i := range g.cells {
		if g.cells[i].Kind == cellCollapse || g.cells[i].Kind == cellNoise {
			return true
		}
	}
	return false
}

func applyGateCell(c *circuit.Circuit, p placed) error {
	var opts []circuit.GateOption
	if len(p.Params) > 0 {
		opts = append(opts, circuit.Params(p.Params...))
	}
	if len(p.Controls) > 0 {
		opts = append(opts, circuit.Controls(p.Controls...))
		if len(p.States) > 0 {
			opts = append(opts, circuit.ControlStates(p.States...))
		}
	}
	return c.ApplyGate(p.Name, p.Qubits, opts...)
}

// skeleton compiles the deterministic part of the grid: unitary gates and
// projections. This is what the JSON pane shows and what ctrl+s persists;
// collapse and noise cells stay grid-side because their serialized form
// would pin one drawn branch rather than the channel.
func (g *grid) skeleton() (*circuit.Circuit, error) {
	c, err := circuit.New(g.qubits)
	if err != nil {
		return nil, err
	}
	for _, p := range g.ordered() {
		switch p.Kind {
		case cellGate:
			err = applyGateCell(c, p)
		case cellProject:
			err = c.PostSelect(p.Qubits[0], p.keep())
		}
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", p.Step, p.Name)
		}
	}
	return c, nil
}

// trajectory compiles the full grid as a single stochastic trajectory,
// drawing collapse outcomes and noise branches from src.
func (g *grid) trajectory(src *rand.Rand) (*circuit.Circuit, error) {
	c, err := circuit.New(g.qubits)
	if err != nil {
		return nil, err
	}
	for _, p := range g.ordered() {
		switch p.Kind {
		case cellGate:
			err = applyGateCell(c, p)
		case cellProject:
			err = c.PostSelect(p.Qubits[0], p.keep())
		case cellCollapse:
			_, err = c.CondMeasure(p.Qubits[0], circuit.WithSource(src))
		case cellNoise:
			var ch gates.Channel
			ch, err = buildChannel(p.Name, p.Params)
			if err == nil {
				if p.Name == "depolarizing" {
					_, err = c.UnitaryKraus(ch, p.Qubits, circuit.WithSource(src))
				} else {
					_, err = c.GeneralKraus(ch, p.Qubits, circuit.WithSource(src))
				}
			}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", p.Step, p.Name)
		}
	}
	return c, nil
}

// density compiles the grid exactly: channels as superoperators and collapse
// cells as full dephasing, so the result is the trajectory average.
func (g *grid) density() (*circuit.DMCircuit, error) {
	ins, err := g.instructions()
	if err != nil {
		return nil, err
	}
	return circuit.FromDMIR(g.qubits, ins)
}

func (g *grid) instructions() ([]circuit.Instruction, error) {
	out := make([]circuit.Instruction, 0, len(g.cells))
	for _, p := range g.ordered() {
		switch p.Kind {
		case cellGate:
			out = append(out, circuit.Instruction{
				Gate:       p.Name,
				Qubits:     append([]int{}, p.Qubits...),
				Params:     append([]float64{}, p.Params...),
				Controls:   append([]int{}, p.Controls...),
				CtrlStates: append([]int{}, p.States...),
			})
		case cellProject:
			m := make(circuit.ComplexMatrix, 4)
			m[p.keep()*3] = 1
			out = append(out, circuit.Instruction{
				Gate:   "postselect",
				Qubits: append([]int{}, p.Qubits...),
				Kind:   "project",
				Matrix: m,
			})
		case cellCollapse:
			ins, err := channelInstruction("dephase", mustDephase(), p.Qubits)
			if err != nil {
				return nil, err
			}
			out = append(out, ins)
		case cellNoise:
			ch, err := buildChannel(p.Name, p.Params)
			if err != nil {
				return nil, errors.Wrapf(err, "step %d", p.Step)
			}
			ins, err := channelInstruction(p.Name, ch, p.Qubits)
			if err != nil {
				return nil, err
			}
			out = append(out, ins)
		}
	}
	return out, nil
}

func channelInstruction(name string, ch gates.Channel, qubits []int) (circuit.Instruction, error) {
	super, err := gates.KrausToSuper(ch)
	if err != nil {
		return circuit.Instruction{}, err
	}
	return circuit.Instruction{
		Gate:   name,
		Qubits: append([]int{}, qubits...),
		Kind:   "channel",
		Matrix: circuit.ComplexMatrix(super.Matrix()),
	}, nil
}

// mustDephase is the non-selective Z measurement: phase damping at rate 1
// keeps exactly the diagonal, which is what averaging a mid-circuit
// measurement over its outcomes does.
func mustDephase() gates.Channel {
	ch, err := gates.PhaseDampingChannel(1)
	if err != nil {
		panic(err)
	}
	return ch
}

// buildChannel constructs the Kraus channel a noise cell names. A single
// depolarizing value spreads evenly over X, Y and Z.
func buildChannel(name string, params []float64) (gates.Channel, error) {
	switch name {
	case "depolarizing":
		switch len(params) {
		case 1:
			p := params[0] / 3
			return gates.DepolarizingChannel(p, p, p)
		case 3:
			return gates.DepolarizingChannel(params[0], params[1], params[2])
		}
		return gates.Channel{}, errors.Errorf("depolarizing takes 1 or 3 probabilities, got %d", len(params))
	case "amplitudedamping":
		if len(params) != 1 {
			return gates.Channel{}, errors.Errorf("amplitude damping takes gamma, got %d values", len(params))
		}
		return gates.AmplitudeDampingChannel(params[0])
	case "generalizedamplitudedamping":
		if len(params) != 2 {
			return gates.Channel{}, errors.Errorf("generalized amplitude damping takes gamma and p, got %d values", len(params))
		}
		return gates.GeneralizedAmplitudeDampingChannel(params[0], params[1])
	case "phasedamping":
		if len(params) != 1 {
			return gates.Channel{}, errors.Errorf("phase damping takes gamma, got %d values", len(params))
		}
		return gates.PhaseDampingChannel(params[0])
	case "reset":
		return gates.ResetChannel(), nil
	}
	return gates.Channel{}, errors.Errorf("unknown channel %q", name)
}

// defaultNoiseParams fills the parameter slots when placement leaves them
// empty.
func defaultNoiseParams(name string) []float64 {
	switch name {
	case "depolarizing":
		return []float64{0.01, 0.01, 0.01}
	case "generalizedamplitudedamping":
		return []float64{0.05, 0.5}
	case "amplitudedamping", "phasedamping":
		return []float64{0.05}
	}
	return nil
}

// loadInstructions rebuilds the grid from an instruction list, packing
// independent operations onto shared steps the way the editor lays gates
// out. Instructions the grid cannot represent are skipped; the count is
// returned so the caller can surface it.
func (g *grid) loadInstructions(n int, ins []circuit.Instruction) int {
	g.qubits = n
	g.cells = nil
	next := make([]int, n)
	skipped := 0
	for _, in := range ins {
		p, ok := cellOf(in)
		if !ok {
			skipped++
			continue
		}
		step := 0
		bad := false
		for _, w := range p.wires() {
			if w < 0 || w >= n {
				bad = true
				break
			}
			step = max(step, next[w])
		}
		if bad {
			skipped++
			continue
		}
		p.Step = step
		for _, w := range p.wires() {
			next[w] = step + 1
		}
		g.cells = append(g.cells, p)
	}
	return skipped
}

func cellOf(in circuit.Instruction) (placed, bool) {
	switch in.Kind {
	case "", "unitary":
		if !gates.Registered(in.Gate) {
			return placed{}, false
		}
		return placed{
			Name:     gates.Canonical(in.Gate),
			Kind:     cellGate,
			Qubits:   append([]int{}, in.Qubits...),
			Controls: append([]int{}, in.Controls...),
			States:   append([]int{}, in.CtrlStates...),
			Params:   append([]float64{}, in.Params...),
		}, true
	case "project":
		keep := 0.0
		if len(in.Matrix) == 4 && in.Matrix[3] != 0 {
			keep = 1
		}
		return placed{
			Name:   "postselect",
			Kind:   cellProject,
			Qubits: append([]int{}, in.Qubits...),
			Params: []float64{keep},
		}, true
	case "branch":
		if in.Gate != "collapse" {
			// Noise branch records pin one drawn Kraus operator; the
			// grid models the channel, not the draw.
			return placed{}, false
		}
		return placed{
			Name:   "measure",
			Kind:   cellCollapse,
			Qubits: append([]int{}, in.Qubits...),
		}, true
	}
	return placed{}, false
}
