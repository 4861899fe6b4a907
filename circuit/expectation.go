package circuit

import (
	"math"

	"go.uber.org/zap"

	"tensorq/backend"
	"tensorq/gates"
)

// imagTol bounds the imaginary residue tolerated on real-valued results.
const imagTol = 1e-6

// LocalOperator pairs an operator with the qubits it acts on.
type LocalOperator struct {
	Gate   gates.Gate
	Qubits []int
}

// ExpectationPS returns the expectation value of a Pauli string on the
// circuit state. The empty string is the identity and evaluates to 1. When
// the raw value keeps an imaginary residue beyond tolerance, the real part
// is returned together with a NumericalWarning.
func (c *Circuit) ExpectationPS(ps PauliString) (float64, error) {
	norm, qubits, err := ps.normalized(c.n)
	if err != nil {
		return 0, err
	}
	if len(qubits) == 0 {
		return 1, nil
	}
	los := make([]LocalOperator, 0, len(qubits))
	for _, q := range qubits {
		los = append(los, LocalOperator{Gate: norm[q].gate(), Qubits: []int{q}})
	}
	v, err := c.expectation(los)
	if err != nil {
		return 0, err
	}
	if res := math.Abs(imag(v)); res > imagTol {
		c.logger().Warn("imaginary residue on Pauli expectation",
			zap.Float64("residue", res))
		return real(v), backend.Warnf("circuit.ExpectationPS", res, "value %v is not real", v)
	}
	return real(v), nil
}

// Expectation returns <psi|O_m ... O_1|psi> for local operators applied in
// the order given. The value is complex; Pauli strings and other Hermitian
// products come out real up to numerical residue.
func (c *Circuit) Expectation(ops ...LocalOperator) (complex128, error) {
	return c.expectation(ops)
}

func (c *Circuit) expectation(ops []LocalOperator) (complex128, error) {
	const op = "circuit.Expectation"
	if len(ops) == 0 {
		return 0, backend.Constructionf(op, "no operators given")
	}
	targets := make([]int, 0, len(ops))
	norm := make([]LocalOperator, len(ops))
	for i, lo := range ops {
		if lo.Gate.Qubits() != len(lo.Qubits) {
			return 0, backend.Shapef(op, "%s acts on %d qubits, got %d",
				lo.Gate.Name(), lo.Gate.Qubits(), len(lo.Qubits))
		}
		qs, err := normalizeQubits(op, lo.Qubits, c.n)
		if err != nil {
			return 0, err
		}
		norm[i] = LocalOperator{Gate: lo.Gate, Qubits: qs}
		targets = append(targets, qs...)
	}

	st, axes, err := c.lightconeState(targets)
	if err != nil {
		return 0, err
	}
	applied := st
	for _, lo := range norm {
		wires := make([]int, len(lo.Qubits))
		for j, q := range lo.Qubits {
			wires[j] = axes[q]
		}
		tns, err := lo.Gate.Tensor(c.eng, c.dtype)
		if err != nil {
			return 0, err
		}
		applied, err = applyNode(c.eng, applied, node{
			name:  lo.Gate.Name(),
			wires: wires,
			kind:  opUnitary,
			tns:   tns,
		})
		if err != nil {
			return 0, err
		}
	}
	return c.eng.InnerProduct(st, applied)
}
