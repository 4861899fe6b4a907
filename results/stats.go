package results

import "tensorq/backend"

// Marginal projects counts onto the given key positions, in the order
// given, summing everything else out.
func Marginal(c Counts, qubits []int) (Counts, error) {
	const op = "results.Marginal"
	if len(qubits) == 0 {
		return nil, backend.Constructionf(op, "no qubits to keep")
	}
	out := make(Counts)
	for k, v := range c {
		key := make([]byte, len(qubits))
		for i, q := range qubits {
			if q < 0 || q >= len(k) {
				return nil, backend.Constructionf(op, "qubit %d out of range for %d-bit key", q, len(k))
			}
			key[i] = k[q]
		}
		out[string(key)] += v
	}
	return out, nil
}

// Correlation estimates the Z-basis correlator <Z_q1 Z_q2 ...> from counts:
// the parity of the selected bits averaged over shots.
func Correlation(c Counts, qubits ...int) (float64, error) {
	const op = "results.Correlation"
	total := c.Total()
	if total == 0 {
		return 0, backend.Constructionf(op, "empty counts")
	}
	var sum float64
	for k, v := range c {
		par := 0
		for _, q := range qubits {
			if q < 0 || q >= len(k) {
				return 0, backend.Constructionf(op, "qubit %d out of range for %d-bit key", q, len(k))
			}
			if k[q] == '1' {
				par++
			}
		}
		if par%2 == 1 {
			sum -= float64(v)
		} else {
			sum += float64(v)
		}
	}
	return sum / float64(total), nil
}

// ZExpectations estimates <Z_q> for every qubit of the key width.
func ZExpectations(c Counts) ([]float64, error) {
	const op = "results.ZExpectations"
	total := c.Total()
	if total == 0 {
		return nil, backend.Constructionf(op, "empty counts")
	}
	width := -1
	for k := range c {
		if width == -1 {
			width = len(k)
		} else if len(k) != width {
			return nil, backend.Shapef(op, "mixed key widths %d and %d", width, len(k))
		}
	}
	out := make([]float64, width)
	for k, v := range c {
		for q := 0; q < width; q++ {
			if k[q] == '1' {
				out[q] -= float64(v)
			} else {
				out[q] += float64(v)
			}
		}
	}
	for q := range out {
		out[q] /= float64(total)
	}
	return out, nil
}
