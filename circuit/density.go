package circuit

import (
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tensorq/backend"
	"tensorq/config"
	"tensorq/gates"
)

// DMCircuit is a density-matrix circuit over a fixed qubit register. The
// state is a rank-2n tensor, ket legs 0..n-1 and bra legs n..2n-1. Gates act
// on both sides, channels as superoperators, so noise is evolved exactly at
// the square of the pure-state cost, with no trajectory averaging.
type DMCircuit struct {
	helpers

	id    string
	n     int
	eng   backend.Engine
	dtype backend.DType
	input *backend.Dense
	ops   []operation
	state *backend.Dense
}

// NewDM returns an empty density-matrix circuit on n qubits. WithInputState
// accepts either a length-2^n pure state, promoted to its projector, or a
// 2^n x 2^n density matrix.
func NewDM(n int, opts ...Option) (*DMCircuit, error) {
	const op = "circuit.NewDM"
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := config.Current()
	if o.settings != nil {
		s = *o.settings
	}
	eng, err := s.ResolveEngine()
	if err != nil {
		return nil, err
	}
	dt, err := s.ResolveDType()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, backend.Constructionf(op, "register needs at least one qubit, got %d", n)
	}

	d := &DMCircuit{
		id:    uuid.NewString(),
		n:     n,
		eng:   eng,
		dtype: dt,
	}
	d.helpers = helpers{d}

	if o.input != nil {
		in, err := normalizeDMInput(eng, dt, o.input, n, op)
		if err != nil {
			return nil, err
		}
		d.input = in
	} else {
		in, err := eng.Basis(dt, 2*n, 0)
		if err != nil {
			return nil, err
		}
		d.input = in
	}
	return d, nil
}

// normalizeDMInput promotes a pure state to its projector or reshapes a
// density matrix to one leg per ket and bra qubit.
func normalizeDMInput(eng backend.Engine, dt backend.DType, t *backend.Dense, n int, op string) (*backend.Dense, error) {
	if t.DType() != dt {
		return nil, backend.TypeMismatchf(op, "input dtype %s does not match circuit dtype %s", t.DType(), dt)
	}
	dim := 1 << uint(n)
	switch t.Size() {
	case dim:
		psi, err := eng.Reshape(t, dim)
		if err != nil {
			return nil, err
		}
		rho, err := eng.Outer(psi, psi)
		if err != nil {
			return nil, err
		}
		return eng.Reshape(rho, qubitShape(2*n)...)
	case dim * dim:
		return eng.Reshape(t, qubitShape(2*n)...)
	}
	return nil, backend.Shapef(op, "input has %d elements, want %d (pure) or %d (density)", t.Size(), dim, dim*dim)
}

// FromCircuit converts a pure-state circuit into its density-matrix form:
// the input becomes a projector and the operation sequence is carried over.
// Branch operators recorded by trajectory sampling come along as-is, so the
// conversion reflects that trajectory, not the channel average.
func FromCircuit(c *Circuit) (*DMCircuit, error) {
	d := &DMCircuit{
		id:    uuid.NewString(),
		n:     c.n,
		eng:   c.eng,
		dtype: c.dtype,
	}
	d.helpers = helpers{d}

	flat, err := c.eng.Reshape(c.input, 1<<uint(c.n))
	if err != nil {
		return nil, err
	}
	in, err := normalizeDMInput(c.eng, c.dtype, flat, c.n, "circuit.FromCircuit")
	if err != nil {
		return nil, err
	}
	d.input = in
	d.ops = make([]operation, 0, len(c.ops))
	for _, op := range c.ops {
		d.ops = append(d.ops, op.clone())
	}
	return d, nil
}

// ID returns the circuit's unique instance id.
func (d *DMCircuit) ID() string { return d.id }

// NumQubits returns the register size, fixed at construction.
func (d *DMCircuit) NumQubits() int { return d.n }

// Engine returns the engine captured at construction.
func (d *DMCircuit) Engine() backend.Engine { return d.eng }

// DType returns the dtype captured at construction.
func (d *DMCircuit) DType() backend.DType { return d.dtype }

func (d *DMCircuit) logger() *zap.Logger {
	return config.Logger().With(zap.String("circuit", d.id))
}

func (d *DMCircuit) invalidate() { d.state = nil }

// Apply appends a gate on the given qubits, acting on ket and bra sides.
func (d *DMCircuit) Apply(g gates.Gate, qubits ...int) error {
	return d.applyOp(operation{
		name:   g.Name(),
		qubits: qubits,
		params: g.Params(),
		kind:   opUnitary,
		g:      g,
	})
}

func (d *DMCircuit) applyOp(op operation) error {
	const fn = "circuit.Apply"
	if op.g.Qubits() != len(op.controls)+len(op.qubits) {
		return backend.Shapef(fn, "gate %q acts on %d qubits, got %d wires", op.g.Name(), op.g.Qubits(), len(op.controls)+len(op.qubits))
	}
	all := append(append([]int{}, op.controls...), op.qubits...)
	norm, err := normalizeQubits(fn, all, d.n)
	if err != nil {
		return err
	}
	op.controls = norm[:len(op.controls)]
	op.qubits = norm[len(op.controls):]
	d.ops = append(d.ops, op)
	d.invalidate()
	return nil
}

// ApplyGate looks a gate up by registry name and applies it, optionally
// embedded under control qubits.
func (d *DMCircuit) ApplyGate(name string, qubits []int, opts ...GateOption) error {
	op, err := resolveGateOp(name, qubits, opts...)
	if err != nil {
		return err
	}
	return d.applyOp(op)
}

// ApplyChannel applies a Kraus channel exactly, as the superoperator
// sum_i K_i (x) conj(K_i) over the ket and bra legs of its qubits.
func (d *DMCircuit) ApplyChannel(ch gates.Channel, qubits ...int) error {
	const op = "circuit.ApplyChannel"
	if len(ch.Kraus) == 0 {
		return backend.Constructionf(op, "channel %s has no Kraus operators", ch.Name)
	}
	if ch.Qubits() != len(qubits) {
		return backend.Shapef(op, "channel %s acts on %d qubits, got %d", ch.Name, ch.Qubits(), len(qubits))
	}
	qs, err := normalizeQubits(op, qubits, d.n)
	if err != nil {
		return err
	}
	super, err := gates.KrausToSuper(ch)
	if err != nil {
		return err
	}
	d.ops = append(d.ops, operation{name: ch.Name, qubits: qs, kind: opChannel, g: super})
	d.invalidate()
	return nil
}

// dmNodes doubles the operation list into network nodes: unitary, projector
// and branch operators act on the ket wires with their conjugate on the bra
// wires, channel superoperators on both at once.
func (d *DMCircuit) dmNodes() ([]node, error) {
	nodes := make([]node, 0, 2*len(d.ops))
	for _, op := range d.ops {
		tns, err := op.g.Tensor(d.eng, d.dtype)
		if err != nil {
			return nil, err
		}
		if op.kind == opChannel {
			wires := make([]int, 0, 2*len(op.qubits))
			wires = append(wires, op.qubits...)
			for _, q := range op.qubits {
				wires = append(wires, q+d.n)
			}
			nodes = append(nodes, node{name: op.name, wires: wires, kind: op.kind, tns: tns})
			continue
		}
		w := op.wires()
		nodes = append(nodes, node{name: op.name, wires: w, kind: op.kind, tns: tns})
		bw := make([]int, len(w))
		for i, q := range w {
			bw[i] = q + d.n
		}
		nodes = append(nodes, node{name: op.name + "~", wires: bw, kind: op.kind, tns: d.eng.Conj(tns)})
	}
	return nodes, nil
}

func (d *DMCircuit) stateTensor() (*backend.Dense, error) {
	if d.state != nil {
		return d.state, nil
	}
	nodes, err := d.dmNodes()
	if err != nil {
		return nil, err
	}
	st, err := contractNodes(d.eng, d.dtype, d.input, nodes, d.logger())
	if err != nil {
		return nil, err
	}
	d.state = st
	return st, nil
}

// DensityMatrix contracts the circuit and returns rho as a 2^n x 2^n matrix.
func (d *DMCircuit) DensityMatrix() (*backend.Dense, error) {
	st, err := d.stateTensor()
	if err != nil {
		return nil, err
	}
	dim := 1 << uint(d.n)
	return d.eng.Reshape(st, dim, dim)
}

// Probability returns the diagonal of rho: the basis measurement
// distribution.
func (d *DMCircuit) Probability() ([]float64, error) {
	rho, err := d.DensityMatrix()
	if err != nil {
		return nil, err
	}
	diag, err := d.eng.Diagonal(rho)
	if err != nil {
		return nil, err
	}
	data := diag.Data()
	probs := make([]float64, len(data))
	for i, v := range data {
		probs[i] = real(v)
	}
	return probs, nil
}

// Sample draws measurement outcomes from the diagonal of rho, qubit 0 as
// the most significant bit.
func (d *DMCircuit) Sample(shots int, opts ...SampleOption) ([]uint64, error) {
	const op = "circuit.DMSample"
	if shots <= 0 {
		return nil, backend.Constructionf(op, "non-positive shot count %d", shots)
	}
	probs, err := d.Probability()
	if err != nil {
		return nil, err
	}
	for i, p := range probs {
		if p < 0 {
			probs[i] = 0
		}
	}
	cum, degenerate := cumulative(probs)
	if degenerate {
		d.logger().Warn("uniform fallback on degenerate distribution", zap.String("op", op))
	}
	s, _ := newSampler(opts)
	out := make([]uint64, shots)
	for i := range out {
		out[i] = drawIndex(cum, s.next())
	}
	return out, nil
}

// ExpectationPS returns tr(O rho) for a Pauli string O. When the raw trace
// keeps an imaginary residue beyond tolerance, the real part is returned
// together with a NumericalWarning.
func (d *DMCircuit) ExpectationPS(ps PauliString) (float64, error) {
	norm, qubits, err := ps.normalized(d.n)
	if err != nil {
		return 0, err
	}
	if len(qubits) == 0 {
		return 1, nil
	}
	st, err := d.stateTensor()
	if err != nil {
		return 0, err
	}
	for _, q := range qubits {
		g := norm[q].gate()
		tns, err := g.Tensor(d.eng, d.dtype)
		if err != nil {
			return 0, err
		}
		st, err = applyNode(d.eng, st, node{name: g.Name(), wires: []int{q}, kind: opUnitary, tns: tns})
		if err != nil {
			return 0, err
		}
	}
	dim := 1 << uint(d.n)
	mat, err := d.eng.Reshape(st, dim, dim)
	if err != nil {
		return 0, err
	}
	v, err := d.eng.Trace(mat)
	if err != nil {
		return 0, err
	}
	if res := math.Abs(imag(v)); res > imagTol {
		d.logger().Warn("imaginary residue on Pauli expectation",
			zap.Float64("residue", res))
		return real(v), backend.Warnf("circuit.DMExpectationPS", res, "trace %v is not real", v)
	}
	return real(v), nil
}

// Purity returns tr(rho^2), 1 for pure states and 1/2^n for the maximally
// mixed state.
func (d *DMCircuit) Purity() (float64, error) {
	st, err := d.stateTensor()
	if err != nil {
		return 0, err
	}
	nrm := d.eng.Norm(st)
	return nrm * nrm, nil
}

// Simulator is the capability surface shared by the pure-state and
// density-matrix circuits.
type Simulator interface {
	NumQubits() int
	Apply(g gates.Gate, qubits ...int) error
	ApplyGate(name string, qubits []int, opts ...GateOption) error
	ExpectationPS(ps PauliString) (float64, error)
	Probability() ([]float64, error)
	Sample(shots int, opts ...SampleOption) ([]uint64, error)
	IR() []Instruction
}

var (
	_ Simulator = (*Circuit)(nil)
	_ Simulator = (*DMCircuit)(nil)
)
