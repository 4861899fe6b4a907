package gates

import (
	"math"
	"math/cmplx"

	"tensorq/backend"
)

// RX returns the rotation exp(-i theta/2 X).
func RX(theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return Gate{name: "rx", nq: 1, params: []float64{theta}, mat: []complex128{c, js, js, c}}
}

// RY returns the rotation exp(-i theta/2 Y).
func RY(theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return Gate{name: "ry", nq: 1, params: []float64{theta}, mat: []complex128{c, -s, s, c}}
}

// RZ returns the rotation exp(-i theta/2 Z).
func RZ(theta float64) Gate {
	p := cmplx.Exp(complex(0, theta/2))
	return Gate{name: "rz", nq: 1, params: []float64{theta}, mat: []complex128{cmplx.Conj(p), 0, 0, p}}
}

// Phase returns diag(1, exp(i theta)).
func Phase(theta float64) Gate {
	return Gate{name: "phase", nq: 1, params: []float64{theta}, mat: []complex128{1, 0, 0, cmplx.Exp(complex(0, theta))}}
}

// R returns the general single-qubit rotation
// cos(theta) I - i sin(theta) (sin(alpha)cos(phi) X + sin(alpha)sin(phi) Y + cos(alpha) Z),
// a rotation by 2*theta about the Bloch axis with polar angle alpha and
// azimuth phi. R(theta, pi/2, 0) equals RX(2*theta).
func R(theta, alpha, phi float64) Gate {
	c := math.Cos(theta)
	s := math.Sin(theta)
	nx := s * math.Sin(alpha) * math.Cos(phi)
	ny := s * math.Sin(alpha) * math.Sin(phi)
	nz := s * math.Cos(alpha)
	return Gate{name: "r", nq: 1, params: []float64{theta, alpha, phi}, mat: []complex128{
		complex(c, -nz), complex(-ny, -nx),
		complex(ny, -nx), complex(c, nz),
	}}
}

// U returns the generic single-qubit gate
// [[cos(t/2), -exp(i lbd) sin(t/2)], [exp(i phi) sin(t/2), exp(i(phi+lbd)) cos(t/2)]].
func U(theta, phi, lbd float64) Gate {
	c := math.Cos(theta / 2)
	s := math.Sin(theta / 2)
	return Gate{name: "u", nq: 1, params: []float64{theta, phi, lbd}, mat: []complex128{
		complex(c, 0), -cmplx.Exp(complex(0, lbd)) * complex(s, 0),
		cmplx.Exp(complex(0, phi)) * complex(s, 0), cmplx.Exp(complex(0, phi+lbd)) * complex(c, 0),
	}}
}

// RXX returns the two-qubit rotation exp(-i theta/2 XX).
func RXX(theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return Gate{name: "rxx", nq: 2, params: []float64{theta}, mat: []complex128{
		c, 0, 0, js,
		0, c, js, 0,
		0, js, c, 0,
		js, 0, 0, c,
	}}
}

// RYY returns the two-qubit rotation exp(-i theta/2 YY).
func RYY(theta float64) Gate {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return Gate{name: "ryy", nq: 2, params: []float64{theta}, mat: []complex128{
		c, 0, 0, -js,
		0, c, js, 0,
		0, js, c, 0,
		-js, 0, 0, c,
	}}
}

// RZZ returns the two-qubit rotation exp(-i theta/2 ZZ).
func RZZ(theta float64) Gate {
	p := cmplx.Exp(complex(0, theta/2))
	return Gate{name: "rzz", nq: 2, params: []float64{theta}, mat: []complex128{
		cmplx.Conj(p), 0, 0, 0,
		0, p, 0, 0,
		0, 0, p, 0,
		0, 0, 0, cmplx.Conj(p),
	}}
}

// ISwap returns the parameterized iSWAP gate; theta 1 is the full iSWAP.
func ISwap(theta float64) Gate {
	c := complex(math.Cos(theta*math.Pi/2), 0)
	js := complex(0, math.Sin(theta*math.Pi/2))
	return Gate{name: "iswap", nq: 2, params: []float64{theta}, mat: []complex128{
		1, 0, 0, 0,
		0, c, js, 0,
		0, js, c, 0,
		0, 0, 0, 1,
	}}
}

func mustControl(base Gate, states ...int) Gate {
	g, err := Controlled(base, states...)
	if err != nil {
		panic(err)
	}
	return g
}

// CRX returns the controlled RX gate.
func CRX(theta float64) Gate { return mustControl(RX(theta), 1) }

// CRY returns the controlled RY gate.
func CRY(theta float64) Gate { return mustControl(RY(theta), 1) }

// CRZ returns the controlled RZ gate.
func CRZ(theta float64) Gate { return mustControl(RZ(theta), 1) }

// CPhase returns the controlled phase gate diag(1, 1, 1, exp(i theta)).
func CPhase(theta float64) Gate { return mustControl(Phase(theta), 1) }

// CR returns the controlled general rotation gate.
func CR(theta, alpha, phi float64) Gate { return mustControl(R(theta, alpha, phi), 1) }

// CU returns the controlled U gate.
func CU(theta, phi, lbd float64) Gate { return mustControl(U(theta, phi, lbd), 1) }

// ORX returns RX on the target when the control qubit is |0>.
func ORX(theta float64) Gate { return mustControl(RX(theta), 0) }

// ORY returns RY on the target when the control qubit is |0>.
func ORY(theta float64) Gate { return mustControl(RY(theta), 0) }

// ORZ returns RZ on the target when the control qubit is |0>.
func ORZ(theta float64) Gate { return mustControl(RZ(theta), 0) }

// Exp1 returns exp(-i theta G) for a generator with G^2 = I, computed in
// closed form as cos(theta) I - i sin(theta) G. Generators violating
// G^2 = I are rejected with a ConstructionError.
func Exp1(g Gate, theta float64) (Gate, error) {
	dim := g.Dim()
	sq := matMul(g.mat, g.mat, dim)
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := complex128(0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(sq[i*dim+j]-want) > 1e-8 {
				return Gate{}, backend.Constructionf("gates.Exp1", "generator %q does not square to identity", g.name)
			}
		}
	}
	c := complex(math.Cos(theta), 0)
	js := complex(0, -math.Sin(theta))
	mat := make([]complex128, len(g.mat))
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			v := js * g.mat[i*dim+j]
			if i == j {
				v += c
			}
			mat[i*dim+j] = v
		}
	}
	return Gate{name: "exp1", nq: g.nq, params: append(g.Params(), theta), mat: mat}, nil
}

// Exp returns exp(-i theta G) for a Hermitian generator, using its
// eigendecomposition. Prefer Exp1 when the generator squares to identity.
func Exp(g Gate, theta float64) (Gate, error) {
	mat, err := backend.ExpmHermitian(g.mat, g.Dim(), complex(0, -theta))
	if err != nil {
		return Gate{}, err
	}
	return Gate{name: "exp", nq: g.nq, params: append(g.Params(), theta), mat: mat}, nil
}
