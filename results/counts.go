// Package results converts raw measurement samples between count formats
// and layers classical readout error and its mitigation on top of them.
// Nothing here touches the contraction engine: inputs are samples or counts,
// outputs are counts or distributions, and every format conversion is
// lossless up to zero-count entries.
package results

import (
	"sort"

	"tensorq/backend"
)

// Counts maps basis bitstrings (qubit 0 first) to observation counts.
type Counts map[string]int

// IntCounts maps basis indices to observation counts.
type IntCounts map[uint64]int

// Pair is one entry of an index-sorted count table.
type Pair struct {
	Index uint64
	Count int
}

// Bitstring renders a basis index as n bits, qubit 0 first.
func Bitstring(idx uint64, n int) string {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = '0' + byte((idx>>uint(n-1-i))&1)
	}
	return string(b)
}

// Index parses a bitstring back into its basis index.
func Index(bits string) (uint64, error) {
	var idx uint64
	for _, ch := range bits {
		switch ch {
		case '0':
			idx <<= 1
		case '1':
			idx = idx<<1 | 1
		default:
			return 0, backend.Constructionf("results.Index", "bitstring %q contains %q", bits, ch)
		}
	}
	return idx, nil
}

// FromSamples tallies raw samples over an n-qubit register.
func FromSamples(samples []uint64, n int) Counts {
	c := make(Counts, len(samples))
	for _, s := range samples {
		c[Bitstring(s, n)]++
	}
	return c
}

// Bitstrings renders raw samples as bitstrings, one per shot.
func Bitstrings(samples []uint64, n int) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = Bitstring(s, n)
	}
	return out
}

// FromBitstrings tallies per-shot bitstrings, validating their characters
// and enforcing a common width.
func FromBitstrings(samples []string) (Counts, error) {
	c := make(Counts, len(samples))
	width := -1
	for _, s := range samples {
		if width == -1 {
			width = len(s)
		} else if len(s) != width {
			return nil, backend.Shapef("results.FromBitstrings", "mixed widths %d and %d", width, len(s))
		}
		if _, err := Index(s); err != nil {
			return nil, err
		}
		c[s]++
	}
	return c, nil
}

// Total returns the number of shots behind the counts.
func (c Counts) Total() int {
	total := 0
	for _, v := range c {
		total += v
	}
	return total
}

// Ints converts bitstring keys to basis indices.
func (c Counts) Ints() (IntCounts, error) {
	out := make(IntCounts, len(c))
	for k, v := range c {
		idx, err := Index(k)
		if err != nil {
			return nil, err
		}
		out[idx] += v
	}
	return out, nil
}

// Counts converts basis indices back to n-bit string keys.
func (ic IntCounts) Counts(n int) Counts {
	out := make(Counts, len(ic))
	for idx, v := range ic {
		out[Bitstring(idx, n)] += v
	}
	return out
}

// Vector lays the counts out as a dense length-2^n table.
func (c Counts) Vector(n int) ([]int, error) {
	vec := make([]int, 1<<uint(n))
	for k, v := range c {
		if len(k) != n {
			return nil, backend.Shapef("results.Vector", "key %q is not %d bits", k, n)
		}
		idx, err := Index(k)
		if err != nil {
			return nil, err
		}
		vec[idx] += v
	}
	return vec, nil
}

// FromVector tallies a dense count table back into keyed counts, dropping
// zero entries.
func FromVector(vec []int, n int) (Counts, error) {
	if len(vec) != 1<<uint(n) {
		return nil, backend.Shapef("results.FromVector", "table of %d entries does not cover %d qubits", len(vec), n)
	}
	c := make(Counts)
	for i, v := range vec {
		if v != 0 {
			c[Bitstring(uint64(i), n)] = v
		}
	}
	return c, nil
}

// Pairs returns the counts as an index-sorted table.
func (c Counts) Pairs() ([]Pair, error) {
	ic, err := c.Ints()
	if err != nil {
		return nil, err
	}
	out := make([]Pair, 0, len(ic))
	for idx, v := range ic {
		out = append(out, Pair{Index: idx, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// FromPairs tallies a count table back into keyed counts.
func FromPairs(pairs []Pair, n int) Counts {
	c := make(Counts, len(pairs))
	for _, p := range pairs {
		if p.Count != 0 {
			c[Bitstring(p.Index, n)] += p.Count
		}
	}
	return c
}

// Distribution normalizes the counts into relative frequencies.
func (c Counts) Distribution() map[string]float64 {
	total := c.Total()
	out := make(map[string]float64, len(c))
	if total == 0 {
		return out
	}
	for k, v := range c {
		out[k] = float64(v) / float64(total)
	}
	return out
}
