package gates

import (
	"math"
	"math/cmplx"

	"tensorq/backend"
)

// Channel is a completely positive map given by its Kraus operators. All
// operators act on the same number of qubits.
type Channel struct {
	Name  string
	Kraus []Gate
}

// Qubits reports how many qubits the channel acts on.
func (c Channel) Qubits() int {
	if len(c.Kraus) == 0 {
		return 0
	}
	return c.Kraus[0].nq
}

// DepolarizingChannel returns the single-qubit channel that applies X, Y, Z
// with probabilities px, py, pz and identity otherwise.
func DepolarizingChannel(px, py, pz float64) (Channel, error) {
	if px < 0 || py < 0 || pz < 0 || px+py+pz > 1 {
		return Channel{}, backend.Constructionf("gates.DepolarizingChannel", "probabilities (%g, %g, %g) must be non-negative and sum to at most 1", px, py, pz)
	}
	return Channel{Name: "depolarizing", Kraus: []Gate{
		scaled(I(), math.Sqrt(1-px-py-pz)),
		scaled(X(), math.Sqrt(px)),
		scaled(Y(), math.Sqrt(py)),
		scaled(Z(), math.Sqrt(pz)),
	}}, nil
}

// AmplitudeDampingChannel returns the T1 decay channel with rate gamma.
func AmplitudeDampingChannel(gamma float64) (Channel, error) {
	if gamma < 0 || gamma > 1 {
		return Channel{}, backend.Constructionf("gates.AmplitudeDampingChannel", "gamma %g must be in [0, 1]", gamma)
	}
	g := math.Sqrt(gamma)
	k := math.Sqrt(1 - gamma)
	return Channel{Name: "amplitudedamping", Kraus: []Gate{
		{name: "kraus0", nq: 1, mat: []complex128{1, 0, 0, complex(k, 0)}},
		{name: "kraus1", nq: 1, mat: []complex128{0, complex(g, 0), 0, 0}},
	}}, nil
}

// GeneralizedAmplitudeDampingChannel returns amplitude damping toward a
// thermal state, where p is the probability of relaxing toward |0>.
func GeneralizedAmplitudeDampingChannel(gamma, p float64) (Channel, error) {
	if gamma < 0 || gamma > 1 || p < 0 || p > 1 {
		return Channel{}, backend.Constructionf("gates.GeneralizedAmplitudeDampingChannel", "gamma %g and p %g must be in [0, 1]", gamma, p)
	}
	g := math.Sqrt(gamma)
	k := math.Sqrt(1 - gamma)
	sp := math.Sqrt(p)
	sq := math.Sqrt(1 - p)
	return Channel{Name: "generalizedamplitudedamping", Kraus: []Gate{
		{name: "kraus0", nq: 1, mat: []complex128{complex(sp, 0), 0, 0, complex(sp*k, 0)}},
		{name: "kraus1", nq: 1, mat: []complex128{0, complex(sp*g, 0), 0, 0}},
		{name: "kraus2", nq: 1, mat: []complex128{complex(sq*k, 0), 0, 0, complex(sq, 0)}},
		{name: "kraus3", nq: 1, mat: []complex128{0, 0, complex(sq*g, 0), 0}},
	}}, nil
}

// PhaseDampingChannel returns the pure dephasing channel with rate gamma.
func PhaseDampingChannel(gamma float64) (Channel, error) {
	if gamma < 0 || gamma > 1 {
		return Channel{}, backend.Constructionf("gates.PhaseDampingChannel", "gamma %g must be in [0, 1]", gamma)
	}
	g := math.Sqrt(gamma)
	k := math.Sqrt(1 - gamma)
	return Channel{Name: "phasedamping", Kraus: []Gate{
		{name: "kraus0", nq: 1, mat: []complex128{1, 0, 0, complex(k, 0)}},
		{name: "kraus1", nq: 1, mat: []complex128{0, 0, 0, complex(g, 0)}},
	}}, nil
}

// ResetChannel returns the channel that resets a qubit to |0>.
func ResetChannel() Channel {
	return Channel{Name: "reset", Kraus: []Gate{
		{name: "kraus0", nq: 1, mat: []complex128{1, 0, 0, 0}},
		{name: "kraus1", nq: 1, mat: []complex128{0, 1, 0, 0}},
	}}
}

// ComposeChannels returns the channel applying first and then second, with
// Kraus operators given by all pairwise products.
func ComposeChannels(first, second Channel) (Channel, error) {
	if first.Qubits() != second.Qubits() {
		return Channel{}, backend.Shapef("gates.ComposeChannels", "channels act on %d and %d qubits", first.Qubits(), second.Qubits())
	}
	dim := 1 << first.Qubits()
	ops := make([]Gate, 0, len(first.Kraus)*len(second.Kraus))
	for _, b := range second.Kraus {
		for _, a := range first.Kraus {
			ops = append(ops, Gate{name: "kraus", nq: first.Qubits(), mat: matMul(b.mat, a.mat, dim)})
		}
	}
	return Channel{Name: second.Name + "*" + first.Name, Kraus: ops}, nil
}

// CheckKraus verifies the completeness relation sum K^dag K = I within tol.
// A non-positive tol selects the default 1e-8.
func CheckKraus(c Channel, tol float64) error {
	if tol <= 0 {
		tol = 1e-8
	}
	if len(c.Kraus) == 0 {
		return backend.Constructionf("gates.CheckKraus", "channel %q has no Kraus operators", c.Name)
	}
	nq := c.Kraus[0].nq
	dim := 1 << nq
	sum := make([]complex128, dim*dim)
	for _, k := range c.Kraus {
		if k.nq != nq {
			return backend.Shapef("gates.CheckKraus", "channel %q mixes %d and %d qubit operators", c.Name, nq, k.nq)
		}
		adj := k.Adjoint()
		prod := matMul(adj.mat, k.mat, dim)
		for i := range sum {
			sum[i] += prod[i]
		}
	}
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := complex128(0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(sum[i*dim+j]-want) > tol {
				return backend.Constructionf("gates.CheckKraus", "channel %q violates completeness at (%d,%d) by %g", c.Name, i, j, cmplx.Abs(sum[i*dim+j]-want))
			}
		}
	}
	return nil
}

// KrausToSuper returns the superoperator sum K (x) conj(K) as a gate on
// twice the channel's qubits. Applied to the ket and bra legs of a
// vectorized density matrix it evolves rho to sum K rho K^dag.
func KrausToSuper(c Channel) (Gate, error) {
	if len(c.Kraus) == 0 {
		return Gate{}, backend.Constructionf("gates.KrausToSuper", "channel %q has no Kraus operators", c.Name)
	}
	nq := c.Kraus[0].nq
	dim := 1 << nq
	out := make([]complex128, dim*dim*dim*dim)
	for _, k := range c.Kraus {
		if k.nq != nq {
			return Gate{}, backend.Shapef("gates.KrausToSuper", "channel %q mixes %d and %d qubit operators", c.Name, nq, k.nq)
		}
		conj := make([]complex128, len(k.mat))
		for i, v := range k.mat {
			conj[i] = cmplx.Conj(v)
		}
		term := kronMat(k.mat, conj, dim, dim)
		for i := range out {
			out[i] += term[i]
		}
	}
	return Gate{name: c.Name, nq: 2 * nq, mat: out}, nil
}

// scaled multiplies every entry of a gate by a real factor.
func scaled(g Gate, f float64) Gate {
	mat := make([]complex128, len(g.mat))
	for i, v := range g.mat {
		mat[i] = v * complex(f, 0)
	}
	return Gate{name: g.name, nq: g.nq, params: g.params, mat: mat}
}
