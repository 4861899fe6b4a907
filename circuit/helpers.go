package circuit

import "tensorq/gates"

// applier is the single hook the typed gate helpers need.
type applier interface {
	Apply(g gates.Gate, qubits ...int) error
}

// helpers carries the typed per-gate methods shared by Circuit and
// DMCircuit through embedding.
type helpers struct {
	a applier
}

// I applies the identity gate.
func (h helpers) I(q int) error { return h.a.Apply(gates.I(), q) }

// X applies the Pauli X gate.
func (h helpers) X(q int) error { return h.a.Apply(gates.X(), q) }

// Y applies the Pauli Y gate.
func (h helpers) Y(q int) error { return h.a.Apply(gates.Y(), q) }

// Z applies the Pauli Z gate.
func (h helpers) Z(q int) error { return h.a.Apply(gates.Z(), q) }

// H applies the Hadamard gate.
func (h helpers) H(q int) error { return h.a.Apply(gates.H(), q) }

// S applies the phase gate.
func (h helpers) S(q int) error { return h.a.Apply(gates.S(), q) }

// SD applies the adjoint phase gate.
func (h helpers) SD(q int) error { return h.a.Apply(gates.SD(), q) }

// T applies the T gate.
func (h helpers) T(q int) error { return h.a.Apply(gates.T(), q) }

// TD applies the adjoint T gate.
func (h helpers) TD(q int) error { return h.a.Apply(gates.TD(), q) }

// WRoot applies the square root of the W gate.
func (h helpers) WRoot(q int) error { return h.a.Apply(gates.WRoot(), q) }

// CNOT applies a controlled X.
func (h helpers) CNOT(ctrl, tgt int) error { return h.a.Apply(gates.CNOT(), ctrl, tgt) }

// CX is an alias for CNOT.
func (h helpers) CX(ctrl, tgt int) error { return h.CNOT(ctrl, tgt) }

// CY applies a controlled Y.
func (h helpers) CY(ctrl, tgt int) error { return h.a.Apply(gates.CY(), ctrl, tgt) }

// CZ applies a controlled Z.
func (h helpers) CZ(ctrl, tgt int) error { return h.a.Apply(gates.CZ(), ctrl, tgt) }

// SWAP exchanges two qubits.
func (h helpers) SWAP(q0, q1 int) error { return h.a.Apply(gates.SWAP(), q0, q1) }

// ISwap applies the full iSWAP gate.
func (h helpers) ISwap(q0, q1 int) error { return h.a.Apply(gates.ISwap(1), q0, q1) }

// OX applies X on tgt when ctrl is |0>.
func (h helpers) OX(ctrl, tgt int) error { return h.a.Apply(gates.OX(), ctrl, tgt) }

// OY applies Y on tgt when ctrl is |0>.
func (h helpers) OY(ctrl, tgt int) error { return h.a.Apply(gates.OY(), ctrl, tgt) }

// OZ applies Z on tgt when ctrl is |0>.
func (h helpers) OZ(ctrl, tgt int) error { return h.a.Apply(gates.OZ(), ctrl, tgt) }

// Toffoli applies a doubly controlled X.
func (h helpers) Toffoli(c1, c2, tgt int) error { return h.a.Apply(gates.Toffoli(), c1, c2, tgt) }

// Fredkin applies a controlled swap.
func (h helpers) Fredkin(ctrl, t1, t2 int) error { return h.a.Apply(gates.Fredkin(), ctrl, t1, t2) }

// RX applies exp(-i theta/2 X).
func (h helpers) RX(q int, theta float64) error { return h.a.Apply(gates.RX(theta), q) }

// RY applies exp(-i theta/2 Y).
func (h helpers) RY(q int, theta float64) error { return h.a.Apply(gates.RY(theta), q) }

// RZ applies exp(-i theta/2 Z).
func (h helpers) RZ(q int, theta float64) error { return h.a.Apply(gates.RZ(theta), q) }

// Phase applies diag(1, exp(i theta)).
func (h helpers) Phase(q int, theta float64) error { return h.a.Apply(gates.Phase(theta), q) }

// R applies the general single-qubit rotation.
func (h helpers) R(q int, theta, alpha, phi float64) error {
	return h.a.Apply(gates.R(theta, alpha, phi), q)
}

// U applies the generic single-qubit gate.
func (h helpers) U(q int, theta, phi, lbd float64) error {
	return h.a.Apply(gates.U(theta, phi, lbd), q)
}

// RXX applies exp(-i theta/2 XX).
func (h helpers) RXX(q0, q1 int, theta float64) error { return h.a.Apply(gates.RXX(theta), q0, q1) }

// RYY applies exp(-i theta/2 YY).
func (h helpers) RYY(q0, q1 int, theta float64) error { return h.a.Apply(gates.RYY(theta), q0, q1) }

// RZZ applies exp(-i theta/2 ZZ).
func (h helpers) RZZ(q0, q1 int, theta float64) error { return h.a.Apply(gates.RZZ(theta), q0, q1) }

// CRX applies a controlled RX.
func (h helpers) CRX(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.CRX(theta), ctrl, tgt)
}

// CRY applies a controlled RY.
func (h helpers) CRY(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.CRY(theta), ctrl, tgt)
}

// CRZ applies a controlled RZ.
func (h helpers) CRZ(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.CRZ(theta), ctrl, tgt)
}

// CPhase applies a controlled phase.
func (h helpers) CPhase(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.CPhase(theta), ctrl, tgt)
}

// CR applies a controlled general rotation.
func (h helpers) CR(ctrl, tgt int, theta, alpha, phi float64) error {
	return h.a.Apply(gates.CR(theta, alpha, phi), ctrl, tgt)
}

// CU applies a controlled U.
func (h helpers) CU(ctrl, tgt int, theta, phi, lbd float64) error {
	return h.a.Apply(gates.CU(theta, phi, lbd), ctrl, tgt)
}

// ORX applies RX on tgt when ctrl is |0>.
func (h helpers) ORX(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.ORX(theta), ctrl, tgt)
}

// ORY applies RY on tgt when ctrl is |0>.
func (h helpers) ORY(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.ORY(theta), ctrl, tgt)
}

// ORZ applies RZ on tgt when ctrl is |0>.
func (h helpers) ORZ(ctrl, tgt int, theta float64) error {
	return h.a.Apply(gates.ORZ(theta), ctrl, tgt)
}

// Exp1 applies exp(-i theta G) for a generator with G^2 = I.
func (h helpers) Exp1(theta float64, g gates.Gate, qubits ...int) error {
	e, err := gates.Exp1(g, theta)
	if err != nil {
		return err
	}
	return h.a.Apply(e, qubits...)
}

// Exp applies exp(-i theta G) for a Hermitian generator.
func (h helpers) Exp(theta float64, g gates.Gate, qubits ...int) error {
	e, err := gates.Exp(g, theta)
	if err != nil {
		return err
	}
	return h.a.Apply(e, qubits...)
}

// Any applies an arbitrary matrix as a gate.
func (h helpers) Any(mat []complex128, qubits ...int) error {
	g, err := gates.Any(mat)
	if err != nil {
		return err
	}
	return h.a.Apply(g, qubits...)
}
