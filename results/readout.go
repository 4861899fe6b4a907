package results

import (
	"math"
	"math/rand"

	"tensorq/backend"
)

// Confusion is a per-qubit readout confusion matrix, column-stochastic:
// entry [o][t] is the probability of reading bit o when the true bit is t.
type Confusion [2][2]float64

// FlipConfusion builds a confusion matrix from the two flip probabilities:
// p01 reads 1 on a true 0, p10 reads 0 on a true 1.
func FlipConfusion(p01, p10 float64) Confusion {
	return Confusion{{1 - p01, p10}, {p01, 1 - p10}}
}

func (c Confusion) valid() bool {
	const tol = 1e-9
	for t := 0; t < 2; t++ {
		if c[0][t] < -tol || c[1][t] < -tol {
			return false
		}
		if math.Abs(c[0][t]+c[1][t]-1) > tol {
			return false
		}
	}
	return true
}

func transposed(c Confusion) Confusion {
	return Confusion{{c[0][0], c[1][0]}, {c[0][1], c[1][1]}}
}

// sweep applies a 2x2 matrix to the q-th bit of a dense distribution over n
// bits, in place.
func sweep(p []float64, n, q int, m Confusion) {
	bit := 1 << uint(n-1-q)
	for i := range p {
		if i&bit != 0 {
			continue
		}
		p0, p1 := p[i], p[i|bit]
		p[i] = m[0][0]*p0 + m[0][1]*p1
		p[i|bit] = m[1][0]*p0 + m[1][1]*p1
	}
}

func checkConfusions(op string, confs []Confusion) error {
	if len(confs) == 0 {
		return backend.Constructionf(op, "no confusion matrices")
	}
	for i, c := range confs {
		if !c.valid() {
			return backend.Constructionf(op, "confusion matrix %d is not column-stochastic", i)
		}
	}
	return nil
}

// ApplyReadoutError flips sampled bits stochastically through per-qubit
// confusion matrices, one per register qubit. A nil source uses the shared
// generator. This is strictly post-processing: the ideal samples stay
// untouched.
func ApplyReadoutError(samples []uint64, n int, confs []Confusion, r *rand.Rand) ([]uint64, error) {
	const op = "results.ApplyReadoutError"
	if len(confs) != n {
		return nil, backend.Shapef(op, "%d confusion matrices for %d qubits", len(confs), n)
	}
	if err := checkConfusions(op, confs); err != nil {
		return nil, err
	}
	uniform := rand.Float64
	if r != nil {
		uniform = r.Float64
	}
	out := make([]uint64, len(samples))
	for i, s := range samples {
		v := s
		for q := 0; q < n; q++ {
			shift := uint(n - 1 - q)
			t := (s >> shift) & 1
			if uniform() < confs[q][1-t][t] {
				v ^= 1 << shift
			}
		}
		out[i] = v
	}
	return out, nil
}

// ReweightDistribution pushes an ideal distribution through the readout
// confusion one qubit sweep at a time, giving the distribution a noisy
// readout would produce.
func ReweightDistribution(probs []float64, confs []Confusion) ([]float64, error) {
	const op = "results.ReweightDistribution"
	n := len(confs)
	if len(probs) != 1<<uint(n) {
		return nil, backend.Shapef(op, "distribution of %d entries does not cover %d qubits", len(probs), n)
	}
	if err := checkConfusions(op, confs); err != nil {
		return nil, err
	}
	out := append([]float64(nil), probs...)
	for q := 0; q < n; q++ {
		sweep(out, n, q, confs[q])
	}
	return out, nil
}

// Mitigator corrects measured counts for independent per-qubit readout
// error. Keys carry one bit per calibrated qubit, in matrix order.
type Mitigator struct {
	confs []Confusion
}

// NewMitigator validates the calibration matrices.
func NewMitigator(confs []Confusion) (*Mitigator, error) {
	if err := checkConfusions("results.NewMitigator", confs); err != nil {
		return nil, err
	}
	return &Mitigator{confs: append([]Confusion(nil), confs...)}, nil
}

// Method selects the correction algorithm.
type Method int

const (
	// MethodInverse multiplies by the exact inverse confusion. Fast, but
	// statistical noise can leave small negative quasi-counts.
	MethodInverse Method = iota
	// MethodSquare solves the confusion system iteratively under a
	// nonnegativity constraint, trading a little bias for a valid
	// distribution.
	MethodSquare
)

// Mitigate corrects measured counts, returning corrected count weights per
// bitstring scaled to the shot total.
func (m *Mitigator) Mitigate(c Counts, method Method) (map[string]float64, error) {
	const op = "results.Mitigate"
	n := len(m.confs)
	vec, err := c.Vector(n)
	if err != nil {
		return nil, err
	}
	total := float64(c.Total())
	if total == 0 {
		return nil, backend.Constructionf(op, "empty counts")
	}
	y := make([]float64, len(vec))
	for i, v := range vec {
		y[i] = float64(v) / total
	}

	var x []float64
	switch method {
	case MethodInverse:
		x, err = m.inverse(y)
	case MethodSquare:
		x, err = m.square(y)
	default:
		return nil, backend.NotSupportedf(op, "unknown mitigation method %d", method)
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for i, v := range x {
		if v != 0 {
			out[Bitstring(uint64(i), n)] = v * total
		}
	}
	return out, nil
}

func (m *Mitigator) inverse(y []float64) ([]float64, error) {
	n := len(m.confs)
	x := append([]float64(nil), y...)
	for q, c := range m.confs {
		det := c[0][0]*c[1][1] - c[0][1]*c[1][0]
		if math.Abs(det) < 1e-12 {
			return nil, backend.Constructionf("results.Mitigate", "confusion matrix %d is singular", q)
		}
		inv := Confusion{
			{c[1][1] / det, -c[0][1] / det},
			{-c[1][0] / det, c[0][0] / det},
		}
		sweep(x, n, q, inv)
	}
	return x, nil
}

// square iterates x <- x * C^T(y / Cx), whose fixed points solve the
// confusion system on the probability simplex.
func (m *Mitigator) square(y []float64) ([]float64, error) {
	n := len(m.confs)
	size := len(y)
	x := make([]float64, size)
	for i := range x {
		x[i] = 1 / float64(size)
	}
	tmp := make([]float64, size)
	ratio := make([]float64, size)
	for it := 0; it < 100; it++ {
		copy(tmp, x)
		for q := 0; q < n; q++ {
			sweep(tmp, n, q, m.confs[q])
		}
		for i := range ratio {
			if tmp[i] > 1e-15 {
				ratio[i] = y[i] / tmp[i]
			} else {
				ratio[i] = 0
			}
		}
		for q := 0; q < n; q++ {
			sweep(ratio, n, q, transposed(m.confs[q]))
		}
		var delta, sum float64
		for i := range x {
			next := x[i] * ratio[i]
			delta += math.Abs(next - x[i])
			x[i] = next
			sum += next
		}
		if sum > 0 {
			for i := range x {
				x[i] /= sum
			}
		}
		if delta < 1e-10 {
			break
		}
	}
	return x, nil
}
