package circuit

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tensorq/backend"
	"tensorq/config"
	"tensorq/gates"
)

// opKind distinguishes how an operation entered the circuit.
type opKind int

const (
	// opUnitary is a plain gate application.
	opUnitary opKind = iota
	// opProject is a postselection projector; it does not preserve norm.
	opProject
	// opBranch is a renormalized Kraus operator chosen during trajectory
	// sampling; it restores norm but is not unitary.
	opBranch
	// opChannel is a Kraus channel applied as a superoperator; only the
	// density-matrix circuit records these.
	opChannel
)

// operation is one applied operator: the resolved gate plus the construction
// record needed to reproduce it in the IR.
type operation struct {
	name     string
	qubits   []int
	controls []int
	states   []int
	params   []float64
	kind     opKind
	g        gates.Gate
}

// wires returns the register wires the operation touches, controls first,
// matching the leg order of the resolved gate.
func (o operation) wires() []int {
	w := make([]int, 0, len(o.controls)+len(o.qubits))
	w = append(w, o.controls...)
	w = append(w, o.qubits...)
	return w
}

// clone deep-copies the operation record.
func (o operation) clone() operation {
	out := o
	out.qubits = append([]int(nil), o.qubits...)
	out.controls = append([]int(nil), o.controls...)
	out.states = append([]int(nil), o.states...)
	out.params = append([]float64(nil), o.params...)
	return out
}

// Circuit is a pure-state circuit over a fixed qubit register. A Circuit is
// owned by its creator: methods mutate it in place and it must not be shared
// across goroutines without external synchronization.
type Circuit struct {
	helpers

	id      string
	n       int
	eng     backend.Engine
	dtype   backend.DType
	input   *backend.Dense
	defIn   bool // input is the default |0...0>
	ops     []operation
	state   *backend.Dense // cached contracted state, nil when stale

	branches []int // Kraus branch choices, in application order
	pinned   []int // remaining pinned branch choices to replay
}

// Option configures circuit construction.
type Option func(*options)

type options struct {
	settings *config.Settings
	input    *backend.Dense
	pinned   []int
}

// WithSettings overrides the process-wide settings snapshot for this circuit.
func WithSettings(s config.Settings) Option {
	return func(o *options) { o.settings = &s }
}

// WithInputState replaces the default |0...0> input. The tensor must hold
// 2^n elements; it is copied, never aliased.
func WithInputState(t *backend.Dense) Option {
	return func(o *options) { o.input = t }
}

// WithPinnedBranches fixes the Kraus branch choices UnitaryKraus and
// GeneralKraus would otherwise draw, in application order. Gradient
// transforms rebuild the circuit per evaluation; pinning the branches
// recorded by a base evaluation keeps every rebuild on the same trajectory,
// which is the difference-based form of the stop-gradient rule at branch
// points.
func WithPinnedBranches(branches []int) Option {
	return func(o *options) { o.pinned = append([]int(nil), branches...) }
}

// New returns an empty circuit on n qubits using the engine and dtype from
// the active settings (or the WithSettings override) captured now.
func New(n int, opts ...Option) (*Circuit, error) {
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
		return nil, backend.Constructionf("circuit.New", "register needs at least one qubit, got %d", n)
	}

	c := &Circuit{
		id:     uuid.NewString(),
		n:      n,
		eng:    eng,
		dtype:  dt,
		defIn:  true,
		pinned: o.pinned,
	}
	c.helpers = helpers{c}

	if o.input != nil {
		in, err := normalizeState(eng, dt, o.input, n, "circuit.New")
		if err != nil {
			return nil, err
		}
		c.input = in
		c.defIn = false
	} else {
		in, err := eng.Basis(dt, n, 0)
		if err != nil {
			return nil, err
		}
		c.input = in
	}
	return c, nil
}

// normalizeState validates a caller-supplied state and reshapes a copy of it
// to one leg per qubit.
func normalizeState(eng backend.Engine, dt backend.DType, t *backend.Dense, n int, op string) (*backend.Dense, error) {
	if t.DType() != dt {
		return nil, backend.TypeMismatchf(op, "input state dtype %s does not match circuit dtype %s", t.DType(), dt)
	}
	if t.Size() != 1<<uint(n) {
		return nil, backend.Shapef(op, "input state has %d elements, want %d", t.Size(), 1<<uint(n))
	}
	shape := qubitShape(n)
	return eng.Reshape(t, shape...)
}

// qubitShape returns n legs of dimension 2.
func qubitShape(n int) []int {
	shape := make([]int, n)
	for i := range shape {
		shape[i] = 2
	}
	return shape
}

// ID returns the circuit's unique instance id.
func (c *Circuit) ID() string { return c.id }

// NumQubits returns the register size, fixed at construction.
func (c *Circuit) NumQubits() int { return c.n }

// Engine returns the engine captured at construction.
func (c *Circuit) Engine() backend.Engine { return c.eng }

// DType returns the dtype captured at construction.
func (c *Circuit) DType() backend.DType { return c.dtype }

// normalizeQubit resolves negative indices from the register end and bounds
// checks the result.
func normalizeQubit(op string, q, n int) (int, error) {
	nq := q
	if nq < 0 {
		nq += n
	}
	if nq < 0 || nq >= n {
		return 0, backend.Constructionf(op, "qubit %d out of range for %d-qubit register", q, n)
	}
	return nq, nil
}

// normalizeQubits maps normalizeQubit over a slice and rejects duplicates.
func normalizeQubits(op string, qs []int, n int) ([]int, error) {
	out := make([]int, len(qs))
	seen := make(map[int]bool, len(qs))
	for i, q := range qs {
		nq, err := normalizeQubit(op, q, n)
		if err != nil {
			return nil, err
		}
		if seen[nq] {
			return nil, backend.Constructionf(op, "qubit %d addressed twice", nq)
		}
		seen[nq] = true
		out[i] = nq
	}
	return out, nil
}

// invalidate drops the cached contracted state.
func (c *Circuit) invalidate() { c.state = nil }

// Apply appends a gate on the given qubits. The qubit count must match the
// gate's arity; negative indices address from the register end.
func (c *Circuit) Apply(g gates.Gate, qubits ...int) error {
	return c.applyOp(operation{
		name:   g.Name(),
		qubits: qubits,
		params: g.Params(),
		kind:   opUnitary,
		g:      g,
	})
}

// applyOp validates and records an operation.
func (c *Circuit) applyOp(op operation) error {
	const fn = "circuit.Apply"
	if op.g.Qubits() != len(op.controls)+len(op.qubits) {
		return backend.Shapef(fn, "gate %q acts on %d qubits, got %d wires", op.g.Name(), op.g.Qubits(), len(op.controls)+len(op.qubits))
	}
	all := append(append([]int{}, op.controls...), op.qubits...)
	norm, err := normalizeQubits(fn, all, c.n)
	if err != nil {
		return err
	}
	op.controls = norm[:len(op.controls)]
	op.qubits = norm[len(op.controls):]
	c.ops = append(c.ops, op)
	c.invalidate()
	return nil
}

// GateOption configures an ApplyGate call.
type GateOption func(*gateOpts)

type gateOpts struct {
	params   []float64
	controls []int
	states   []int
}

// Params supplies gate parameters.
func Params(ps ...float64) GateOption {
	return func(o *gateOpts) { o.params = ps }
}

// Controls adds regular control qubits ahead of the gate's targets.
func Controls(qs ...int) GateOption {
	return func(o *gateOpts) { o.controls = qs }
}

// ControlStates sets per-control trigger values (1 fires on |1>, 0 on |0>).
// It must match Controls in length; the default is all ones.
func ControlStates(ss ...int) GateOption {
	return func(o *gateOpts) { o.states = ss }
}

// ApplyGate looks a gate up by registry name and applies it, optionally
// embedded under control qubits.
func (c *Circuit) ApplyGate(name string, qubits []int, opts ...GateOption) error {
	op, err := resolveGateOp(name, qubits, opts...)
	if err != nil {
		return err
	}
	return c.applyOp(op)
}

// resolveGateOp builds the operation record for a named gate application.
func resolveGateOp(name string, qubits []int, opts ...GateOption) (operation, error) {
	const fn = "circuit.ApplyGate"
	var o gateOpts
	for _, opt := range opts {
		opt(&o)
	}
	base, err := gates.Build(name, o.params...)
	if err != nil {
		return operation{}, err
	}
	states := o.states
	if len(states) == 0 {
		states = make([]int, len(o.controls))
		for i := range states {
			states[i] = 1
		}
	}
	if len(states) != len(o.controls) {
		return operation{}, backend.Constructionf(fn, "%d control states for %d controls", len(states), len(o.controls))
	}
	g := base
	if len(o.controls) > 0 {
		g, err = gates.Controlled(base, states...)
		if err != nil {
			return operation{}, err
		}
	}
	return operation{
		name:     gates.Canonical(name),
		qubits:   qubits,
		controls: o.controls,
		states:   states,
		params:   base.Params(),
		kind:     opUnitary,
		g:        g,
	}, nil
}

// Append adds all operations of other to the end of c. Register sizes must
// match; other is not modified.
func (c *Circuit) Append(other *Circuit) error {
	if other.n != c.n {
		return backend.Shapef("circuit.Append", "register sizes %d and %d differ", c.n, other.n)
	}
	for _, op := range other.ops {
		c.ops = append(c.ops, op.clone())
	}
	c.invalidate()
	return nil
}

// Prepend inserts all operations of other before the existing ones, directly
// after the initial state. c keeps its own input state.
func (c *Circuit) Prepend(other *Circuit) error {
	if other.n != c.n {
		return backend.Shapef("circuit.Prepend", "register sizes %d and %d differ", c.n, other.n)
	}
	pre := make([]operation, 0, len(other.ops)+len(c.ops))
	for _, op := range other.ops {
		pre = append(pre, op.clone())
	}
	c.ops = append(pre, c.ops...)
	c.invalidate()
	return nil
}

// Compose appends other with its qubit i rerouted to wires[i]. An empty
// wires list is the identity routing and requires equal register sizes.
func (c *Circuit) Compose(other *Circuit, wires ...int) error {
	const fn = "circuit.Compose"
	if len(wires) == 0 {
		return c.Append(other)
	}
	if len(wires) != other.n {
		return backend.Shapef(fn, "%d wires for a %d-qubit circuit", len(wires), other.n)
	}
	routed, err := normalizeQubits(fn, wires, c.n)
	if err != nil {
		return err
	}
	for _, op := range other.ops {
		cp := op.clone()
		for i, q := range cp.qubits {
			cp.qubits[i] = routed[q]
		}
		for i, q := range cp.controls {
			cp.controls[i] = routed[q]
		}
		c.ops = append(c.ops, cp)
	}
	c.invalidate()
	return nil
}

// Inverse returns a new circuit applying the adjoints of c's gates in
// reverse order. Circuits containing projectors or sampled Kraus branches
// have no inverse.
func (c *Circuit) Inverse() (*Circuit, error) {
	inv, err := New(c.n, WithSettings(config.Settings{Engine: c.eng.Name(), DType: c.dtype.String()}))
	if err != nil {
		return nil, err
	}
	for i := len(c.ops) - 1; i >= 0; i-- {
		op := c.ops[i]
		if op.kind != opUnitary {
			return nil, backend.NotSupportedf("circuit.Inverse", "operation %q is not unitary", op.name)
		}
		cp := op.clone()
		cp.g = op.g.Adjoint()
		cp.name = cp.g.Name()
		inv.ops = append(inv.ops, cp)
	}
	return inv, nil
}

// Size returns the number of applied operations.
func (c *Circuit) Size() int { return len(c.ops) }

// logger returns the active structured logger tagged with the circuit id.
func (c *Circuit) logger() *zap.Logger {
	return config.Logger().With(zap.String("circuit", c.id))
}
