package backend

import "math/rand"

// Status is a pre-drawn array of uniforms in [0,1). Sampling and trajectory
// branching consume one entry per stochastic decision, so a fixed Status
// makes an evaluation fully deterministic and safe to batch or differentiate.
type Status []float64

// NewStatus draws n uniforms from r.
func NewStatus(r *rand.Rand, n int) Status {
	s := make(Status, n)
	for i := range s {
		s[i] = r.Float64()
	}
	return s
}

// NewSource returns a seeded uniform source. Distinct circuit evaluations
// should use distinct sources; *rand.Rand is not safe for concurrent use.
func NewSource(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
