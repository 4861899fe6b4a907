package circuit

import (
	"math"

	"tensorq/backend"
)

// eigCut discards reduced-density eigenvalues below this threshold when
// accumulating entropy, where the log diverges.
const eigCut = 1e-12

// ReducedDensityMatrix traces the pure state down to the kept qubits,
// returning a 2^k x 2^k matrix with keep[0] as the most significant bit.
func (c *Circuit) ReducedDensityMatrix(keep ...int) (*backend.Dense, error) {
	const op = "circuit.ReducedDensityMatrix"
	qs, err := normalizeQubits(op, keep, c.n)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, backend.Constructionf(op, "no qubits kept")
	}
	psi, err := c.State()
	if err != nil {
		return nil, err
	}
	rho, err := c.eng.Outer(psi, psi)
	if err != nil {
		return nil, err
	}
	full, err := c.eng.Reshape(rho, qubitShape(2*c.n)...)
	if err != nil {
		return nil, err
	}
	return c.eng.PartialTrace(full, c.n, qs)
}

// vonNeumann computes -tr(rho ln rho) from the eigenvalues of rho.
func vonNeumann(rho *backend.Dense) (float64, error) {
	vals, _, err := backend.Eigh(rho.Data(), rho.Shape()[0])
	if err != nil {
		return 0, err
	}
	var s float64
	for _, v := range vals {
		if v > eigCut {
			s -= v * math.Log(v)
		}
	}
	return s, nil
}

// EntanglementEntropy returns the von Neumann entropy of the reduced state
// on the kept qubits, in nats. A Bell pair cut in half gives ln 2.
func (c *Circuit) EntanglementEntropy(keep ...int) (float64, error) {
	rho, err := c.ReducedDensityMatrix(keep...)
	if err != nil {
		return 0, err
	}
	return vonNeumann(rho)
}

// Purity returns tr(rho^2) of the reduced state on the kept qubits, 1 when
// they are unentangled with the rest of the register.
func (c *Circuit) Purity(keep ...int) (float64, error) {
	rho, err := c.ReducedDensityMatrix(keep...)
	if err != nil {
		return 0, err
	}
	nrm := c.eng.Norm(rho)
	return nrm * nrm, nil
}

// Fidelity returns |<a|b>|^2 between the states of two pure circuits.
func Fidelity(a, b *Circuit) (float64, error) {
	if a.n != b.n {
		return 0, backend.Shapef("circuit.Fidelity", "register sizes %d and %d differ", a.n, b.n)
	}
	pa, err := a.State()
	if err != nil {
		return 0, err
	}
	pb, err := b.State()
	if err != nil {
		return 0, err
	}
	ov, err := a.eng.InnerProduct(pa, pb)
	if err != nil {
		return 0, err
	}
	return real(ov)*real(ov) + imag(ov)*imag(ov), nil
}

// ReducedDensityMatrix traces rho down to the kept qubits.
func (d *DMCircuit) ReducedDensityMatrix(keep ...int) (*backend.Dense, error) {
	const op = "circuit.ReducedDensityMatrix"
	qs, err := normalizeQubits(op, keep, d.n)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, backend.Constructionf(op, "no qubits kept")
	}
	st, err := d.stateTensor()
	if err != nil {
		return nil, err
	}
	return d.eng.PartialTrace(st, d.n, qs)
}

// Entropy returns the von Neumann entropy of the kept qubits' reduced
// state, or of the full state when no qubits are given.
func (d *DMCircuit) Entropy(keep ...int) (float64, error) {
	if len(keep) == 0 {
		rho, err := d.DensityMatrix()
		if err != nil {
			return 0, err
		}
		return vonNeumann(rho)
	}
	rho, err := d.ReducedDensityMatrix(keep...)
	if err != nil {
		return 0, err
	}
	return vonNeumann(rho)
}
