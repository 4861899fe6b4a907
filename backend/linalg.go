package backend

import (
	"math"
	"math/cmplx"
	"sort"
)

const (
	hermTol   = 1e-9
	jacobiTol = 1e-24
	maxSweeps = 64
)

// Eigh diagonalizes a Hermitian n by n matrix given in row-major order.
// It returns the eigenvalues in ascending order and a row-major matrix
// whose column j holds the eigenvector for eigenvalue j. The input is not
// modified. Non-Hermitian input yields a ConstructionError.
func Eigh(a []complex128, n int) ([]float64, []complex128, error) {
	if n <= 0 || len(a) != n*n {
		return nil, nil, Shapef("backend.Eigh", "matrix size %d does not match order %d", len(a), n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if cmplx.Abs(a[i*n+j]-cmplx.Conj(a[j*n+i])) > hermTol {
				return nil, nil, Constructionf("backend.Eigh", "matrix is not hermitian at (%d,%d)", i, j)
			}
		}
	}

	m := make([]complex128, len(a))
	copy(m, a)
	v := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		v[i*n+i] = 1
	}

	for sweep := 0; sweep < maxSweeps; sweep++ {
		if offDiagNorm(m, n) < jacobiTol {
			break
		}
		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				rotate(m, v, n, p, q)
			}
		}
	}

	vals := make([]float64, n)
	order := make([]int, n)
	for i := range vals {
		vals[i] = real(m[i*n+i])
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return vals[order[i]] < vals[order[j]] })

	sortedVals := make([]float64, n)
	vecs := make([]complex128, n*n)
	for j, src := range order {
		sortedVals[j] = vals[src]
		for i := 0; i < n; i++ {
			vecs[i*n+j] = v[i*n+src]
		}
	}
	return sortedVals, vecs, nil
}

// ExpmHermitian returns exp(scale*A) for a Hermitian n by n matrix A, using
// the eigendecomposition of A. The result is row-major.
func ExpmHermitian(a []complex128, n int, scale complex128) ([]complex128, error) {
	vals, vecs, err := Eigh(a, n)
	if err != nil {
		return nil, err
	}
	// V diag(exp(scale*vals)) V†
	out := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum complex128
			for k := 0; k < n; k++ {
				sum += vecs[i*n+k] * cmplx.Exp(scale*complex(vals[k], 0)) * cmplx.Conj(vecs[j*n+k])
			}
			out[i*n+j] = sum
		}
	}
	return out, nil
}

func offDiagNorm(m []complex128, n int) float64 {
	var s float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				d := cmplx.Abs(m[i*n+j])
				s += d * d
			}
		}
	}
	return s
}

// rotate applies one complex Jacobi rotation zeroing m[p][q].
func rotate(m, v []complex128, n, p, q int) {
	apq := m[p*n+q]
	mag := cmplx.Abs(apq)
	if mag < 1e-300 {
		return
	}
	phase := apq / complex(mag, 0)
	app := real(m[p*n+p])
	aqq := real(m[q*n+q])

	tau := (app - aqq) / (2 * mag)
	var t float64
	if tau >= 0 {
		t = 1 / (tau + math.Sqrt(1+tau*tau))
	} else {
		t = -1 / (-tau + math.Sqrt(1+tau*tau))
	}
	c := 1 / math.Sqrt(1+t*t)
	s := t * c

	cs := complex(c, 0)
	spos := complex(s, 0) * phase // s e^{i phi}
	sneg := complex(s, 0) / phase // s e^{-i phi}

	// columns p and q
	for k := 0; k < n; k++ {
		kp := m[k*n+p]
		kq := m[k*n+q]
		m[k*n+p] = cs*kp + sneg*kq
		m[k*n+q] = -spos*kp + cs*kq
	}
	// rows p and q
	for k := 0; k < n; k++ {
		pk := m[p*n+k]
		qk := m[q*n+k]
		m[p*n+k] = cs*pk + spos*qk
		m[q*n+k] = -sneg*pk + cs*qk
	}
	// eigenvector accumulation
	for k := 0; k < n; k++ {
		kp := v[k*n+p]
		kq := v[k*n+q]
		v[k*n+p] = cs*kp + sneg*kq
		v[k*n+q] = -spos*kp + cs*kq
	}
}
