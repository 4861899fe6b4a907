package gates

import "math"

// sqrt(i) and sqrt(-i), the off-diagonal entries of the W square root.
var (
	sqrtI    = complex(math.Sqrt2/2, math.Sqrt2/2)
	sqrtNegI = complex(math.Sqrt2/2, -math.Sqrt2/2)
)

// I returns the single-qubit identity.
func I() Gate {
	return Gate{name: "i", nq: 1, mat: []complex128{1, 0, 0, 1}}
}

// X returns the Pauli X gate.
func X() Gate {
	return Gate{name: "x", nq: 1, mat: []complex128{0, 1, 1, 0}}
}

// Y returns the Pauli Y gate.
func Y() Gate {
	return Gate{name: "y", nq: 1, mat: []complex128{0, -1i, 1i, 0}}
}

// Z returns the Pauli Z gate.
func Z() Gate {
	return Gate{name: "z", nq: 1, mat: []complex128{1, 0, 0, -1}}
}

// H returns the Hadamard gate.
func H() Gate {
	h := complex(1/math.Sqrt2, 0)
	return Gate{name: "h", nq: 1, mat: []complex128{h, h, h, -h}}
}

// S returns the phase gate diag(1, i).
func S() Gate {
	return Gate{name: "s", nq: 1, mat: []complex128{1, 0, 0, 1i}}
}

// SD returns the adjoint of S.
func SD() Gate {
	return Gate{name: "sd", nq: 1, mat: []complex128{1, 0, 0, -1i}}
}

// T returns the pi/8 gate diag(1, exp(i pi/4)).
func T() Gate {
	return Gate{name: "t", nq: 1, mat: []complex128{1, 0, 0, sqrtI}}
}

// TD returns the adjoint of T.
func TD() Gate {
	return Gate{name: "td", nq: 1, mat: []complex128{1, 0, 0, sqrtNegI}}
}

// WRoot returns the square root of the W gate, (X+Y)/sqrt(2).
func WRoot() Gate {
	h := complex(1/math.Sqrt2, 0)
	return Gate{name: "wroot", nq: 1, mat: []complex128{
		h, -h * sqrtI,
		h * sqrtNegI, h,
	}}
}

// CNOT returns the controlled-X gate, control on the first qubit.
func CNOT() Gate {
	m := identity(4)
	m[2*4+2], m[2*4+3], m[3*4+2], m[3*4+3] = 0, 1, 1, 0
	return Gate{name: "cnot", nq: 2, mat: m}
}

// CY returns the controlled-Y gate.
func CY() Gate {
	m := identity(4)
	m[2*4+2], m[2*4+3], m[3*4+2], m[3*4+3] = 0, -1i, 1i, 0
	return Gate{name: "cy", nq: 2, mat: m}
}

// CZ returns the controlled-Z gate.
func CZ() Gate {
	m := identity(4)
	m[3*4+3] = -1
	return Gate{name: "cz", nq: 2, mat: m}
}

// SWAP returns the two-qubit swap gate.
func SWAP() Gate {
	m := identity(4)
	m[1*4+1], m[1*4+2], m[2*4+1], m[2*4+2] = 0, 1, 1, 0
	return Gate{name: "swap", nq: 2, mat: m}
}

// OX returns X on the target when the control qubit is |0>.
func OX() Gate {
	m := identity(4)
	m[0*4+0], m[0*4+1], m[1*4+0], m[1*4+1] = 0, 1, 1, 0
	return Gate{name: "ox", nq: 2, mat: m}
}

// OY returns Y on the target when the control qubit is |0>.
func OY() Gate {
	m := identity(4)
	m[0*4+0], m[0*4+1], m[1*4+0], m[1*4+1] = 0, -1i, 1i, 0
	return Gate{name: "oy", nq: 2, mat: m}
}

// OZ returns Z on the target when the control qubit is |0>.
func OZ() Gate {
	m := identity(4)
	m[1*4+1] = -1
	return Gate{name: "oz", nq: 2, mat: m}
}

// Toffoli returns the doubly controlled X gate.
func Toffoli() Gate {
	m := identity(8)
	m[6*8+6], m[6*8+7], m[7*8+6], m[7*8+7] = 0, 1, 1, 0
	return Gate{name: "toffoli", nq: 3, mat: m}
}

// Fredkin returns the controlled swap gate.
func Fredkin() Gate {
	m := identity(8)
	m[5*8+5], m[5*8+6], m[6*8+5], m[6*8+6] = 0, 1, 1, 0
	return Gate{name: "fredkin", nq: 3, mat: m}
}
