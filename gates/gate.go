// Package gates builds the unitary matrices and Kraus channels a circuit is
// made of. Gates are immutable values carrying a name, the number of qubits
// they act on, the float parameters they were built from, and a row-major
// matrix. Qubit 0 of a gate is the most significant bit of the matrix index,
// so CNOT comes out in its textbook form with the control on top.
package gates

import (
	"math/cmplx"

	"tensorq/backend"
)

// Gate is an operator on a fixed number of qubits. The zero value is invalid;
// use the constructors in this package or New.
type Gate struct {
	name   string
	nq     int
	params []float64
	mat    []complex128
}

// New wraps a row-major matrix as a gate on nq qubits. The matrix length
// must be exactly 4^nq.
func New(name string, nq int, mat []complex128) (Gate, error) {
	if nq <= 0 {
		return Gate{}, backend.Constructionf("gates.New", "gate %q needs at least one qubit, got %d", name, nq)
	}
	dim := 1 << nq
	if len(mat) != dim*dim {
		return Gate{}, backend.Shapef("gates.New", "gate %q on %d qubits needs a %dx%d matrix, got %d entries", name, nq, dim, dim, len(mat))
	}
	m := make([]complex128, len(mat))
	copy(m, mat)
	return Gate{name: name, nq: nq, mat: m}, nil
}

// Any wraps an arbitrary matrix as a gate, inferring the qubit count from the
// matrix size. It is the escape hatch for operators without a named builder.
func Any(mat []complex128) (Gate, error) {
	nq := 0
	for dim := 1; dim*dim < len(mat); dim <<= 1 {
		nq++
	}
	dim := 1 << nq
	if dim*dim != len(mat) {
		return Gate{}, backend.Shapef("gates.Any", "matrix with %d entries is not square with power-of-two dimension", len(mat))
	}
	return New("any", nq, mat)
}

// Name reports the gate's registry name.
func (g Gate) Name() string { return g.name }

// Qubits reports how many qubits the gate acts on.
func (g Gate) Qubits() int { return g.nq }

// Dim is the matrix dimension, 2^Qubits.
func (g Gate) Dim() int { return 1 << g.nq }

// Params returns a copy of the parameters the gate was built from.
func (g Gate) Params() []float64 {
	if g.params == nil {
		return nil
	}
	out := make([]float64, len(g.params))
	copy(out, g.params)
	return out
}

// Matrix returns a copy of the row-major matrix.
func (g Gate) Matrix() []complex128 {
	out := make([]complex128, len(g.mat))
	copy(out, g.mat)
	return out
}

// At returns the matrix entry at row i, column j.
func (g Gate) At(i, j int) complex128 { return g.mat[i*g.Dim()+j] }

// Adjoint returns the conjugate transpose.
func (g Gate) Adjoint() Gate {
	dim := g.Dim()
	m := make([]complex128, len(g.mat))
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			m[i*dim+j] = cmplx.Conj(g.mat[j*dim+i])
		}
	}
	return Gate{name: adjointName(g.name), nq: g.nq, params: g.params, mat: m}
}

var adjointNames = map[string]string{"s": "sd", "sd": "s", "t": "td", "td": "t"}

func adjointName(name string) string {
	if alt, ok := adjointNames[name]; ok {
		return alt
	}
	return name + "d"
}

// Controlled embeds the gate under the given control states, one entry per
// control qubit, each 0 or 1. Controls come before the gate's own qubits in
// the combined ordering. A state of 1 is a regular control, 0 an open one
// that fires when the control qubit is |0>.
func Controlled(base Gate, ctrlStates ...int) (Gate, error) {
	if len(ctrlStates) == 0 {
		return base, nil
	}
	pattern := 0
	name := ""
	for _, s := range ctrlStates {
		switch s {
		case 0:
			name += "o"
		case 1:
			name += "c"
			pattern |= 1
		default:
			return Gate{}, backend.Constructionf("gates.Controlled", "control state must be 0 or 1, got %d", s)
		}
		pattern <<= 1
	}
	pattern >>= 1

	nq := len(ctrlStates) + base.nq
	dim := 1 << nq
	tdim := base.Dim()
	mat := identity(dim)
	block := pattern << base.nq
	for a := 0; a < tdim; a++ {
		for b := 0; b < tdim; b++ {
			mat[(block+a)*dim+block+b] = base.mat[a*tdim+b]
		}
	}
	return Gate{name: name + base.name, nq: nq, params: base.params, mat: mat}, nil
}

// Tensor converts the gate matrix to an engine tensor of 2*Qubits axes of
// dimension 2: the ket legs for each qubit followed by the bra legs.
func (g Gate) Tensor(eng backend.Engine, dt backend.DType) (*backend.Dense, error) {
	shape := make([]int, 2*g.nq)
	for i := range shape {
		shape[i] = 2
	}
	return eng.FromSlice(dt, g.mat, shape...)
}

// identity returns a dim x dim identity matrix.
func identity(dim int) []complex128 {
	m := make([]complex128, dim*dim)
	for i := 0; i < dim; i++ {
		m[i*dim+i] = 1
	}
	return m
}

// matMul multiplies two dim x dim row-major matrices.
func matMul(a, b []complex128, dim int) []complex128 {
	out := make([]complex128, dim*dim)
	for i := 0; i < dim; i++ {
		for k := 0; k < dim; k++ {
			v := a[i*dim+k]
			if v == 0 {
				continue
			}
			for j := 0; j < dim; j++ {
				out[i*dim+j] += v * b[k*dim+j]
			}
		}
	}
	return out
}

// kronMat returns the Kronecker product of a (da x da) and b (db x db).
func kronMat(a, b []complex128, da, db int) []complex128 {
	dim := da * db
	out := make([]complex128, dim*dim)
	for i := 0; i < da; i++ {
		for j := 0; j < da; j++ {
			v := a[i*da+j]
			if v == 0 {
				continue
			}
			for k := 0; k < db; k++ {
				for l := 0; l < db; l++ {
					out[(i*db+k)*dim+j*db+l] = v * b[k*db+l]
				}
			}
		}
	}
	return out
}
