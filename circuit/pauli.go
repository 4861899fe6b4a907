// Package circuit builds tensor networks from applied gates and contracts
// them into states, expectation values, samples, and noisy evolutions. The
// two state representations are Circuit (pure states, Monte Carlo noise) and
// DMCircuit (density matrices, exact channel evolution); both satisfy
// Simulator. All arithmetic goes through the backend engine captured from
// the active settings when the circuit is constructed.
package circuit

import (
	"sort"

	"tensorq/backend"
	"tensorq/gates"
)

// Pauli labels a single-qubit Pauli operator.
type Pauli int

// Pauli operator codes. The numeric values follow the x=1, y=2, z=3
// convention used in Pauli-structure encodings.
const (
	PauliX Pauli = 1
	PauliY Pauli = 2
	PauliZ Pauli = 3
)

// gate returns the operator matrix for the Pauli code.
func (p Pauli) gate() gates.Gate {
	switch p {
	case PauliX:
		return gates.X()
	case PauliY:
		return gates.Y()
	default:
		return gates.Z()
	}
}

// String returns "x", "y" or "z".
func (p Pauli) String() string {
	switch p {
	case PauliX:
		return "x"
	case PauliY:
		return "y"
	case PauliZ:
		return "z"
	default:
		return "?"
	}
}

// PauliString maps qubit indices to Pauli operators; qubits absent from the
// map carry identity. The zero value is the identity observable.
type PauliString map[int]Pauli

// PS returns an empty Pauli string for fluent construction:
// PS().Z(0).Z(1) is the ZZ correlator on the first two qubits.
func PS() PauliString { return PauliString{} }

// X marks the given qubits with Pauli X and returns the string.
func (ps PauliString) X(qubits ...int) PauliString {
	for _, q := range qubits {
		ps[q] = PauliX
	}
	return ps
}

// Y marks the given qubits with Pauli Y and returns the string.
func (ps PauliString) Y(qubits ...int) PauliString {
	for _, q := range qubits {
		ps[q] = PauliY
	}
	return ps
}

// Z marks the given qubits with Pauli Z and returns the string.
func (ps PauliString) Z(qubits ...int) PauliString {
	for _, q := range qubits {
		ps[q] = PauliZ
	}
	return ps
}

// XOn builds a Pauli string of X operators.
func XOn(qubits ...int) PauliString { return PS().X(qubits...) }

// YOn builds a Pauli string of Y operators.
func YOn(qubits ...int) PauliString { return PS().Y(qubits...) }

// ZOn builds a Pauli string of Z operators.
func ZOn(qubits ...int) PauliString { return PS().Z(qubits...) }

// normalized resolves negative qubit indices against the register size and
// returns the touched qubits in ascending order.
func (ps PauliString) normalized(n int) (PauliString, []int, error) {
	out := make(PauliString, len(ps))
	qubits := make([]int, 0, len(ps))
	for q, p := range ps {
		nq, err := normalizeQubit("circuit.ExpectationPS", q, n)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := out[nq]; dup {
			return nil, nil, backend.Constructionf("circuit.ExpectationPS", "qubit %d addressed twice", nq)
		}
		out[nq] = p
		qubits = append(qubits, nq)
	}
	sort.Ints(qubits)
	return out, qubits, nil
}
