package main

import (
	"tensorq/backend"
	"tensorq/circuit"
	"tensorq/results"
)

// Readout flip rates applied when the readout-error toggle is on. The same
// calibration feeds the mitigator, so corrected counts should land back on
// the ideal distribution.
const (
	readoutP01 = 0.02
	readoutP10 = 0.04
)

// trajectoryShots caps how many independent trajectories a stochastic
// sampling run rebuilds. Shots spread across the trajectories.
const trajectoryShots = 64

// simResult is the live state readout shown in the results panel, recomputed
// after every edit.
type simResult struct {
	err    string
	probs  []float64
	amps   []complex128 // trajectory mode only
	zexp   []float64
	purity float64 // density mode only
}

// runResult holds the outcome of an explicit sampling run.
type runResult struct {
	counts    results.Counts
	mitigated map[string]float64
	shots     int
	mode      string
	err       string
}

// refreshSim recompiles the grid and recomputes the live readout. Stochastic
// cells draw from a source seeded with m.seed, so the view is stable across
// renders until the next sampling run advances the seed.
func (m *Model) refreshSim() {
	m.sim = simResult{}
	if m.useDensity {
		d, err := m.grid.density()
		if err != nil {
			m.sim.err = err.Error()
			return
		}
		probs, err := d.Probability()
		if err != nil {
			m.sim.err = err.Error()
			return
		}
		m.sim.probs = probs
		purity, err := d.Purity()
		if err != nil {
			m.sim.err = err.Error()
			return
		}
		m.sim.purity = purity
		for q := 0; q < m.grid.qubits; q++ {
			z, err := d.ExpectationPS(circuit.ZOn(q))
			if err != nil {
				m.sim.err = err.Error()
				return
			}
			m.sim.zexp = append(m.sim.zexp, z)
		}
		return
	}

	c, err := m.grid.trajectory(backend.NewSource(m.seed))
	if err != nil {
		m.sim.err = err.Error()
		return
	}
	st, err := c.State()
	if err != nil {
		m.sim.err = err.Error()
		return
	}
	m.sim.amps = st.Data()
	probs, err := c.Probability()
	if err != nil {
		m.sim.err = err.Error()
		return
	}
	m.sim.probs = probs
	for q := 0; q < m.grid.qubits; q++ {
		z, err := c.ExpectationPS(circuit.ZOn(q))
		if err != nil {
			m.sim.err = err.Error()
			return
		}
		m.sim.zexp = append(m.sim.zexp, z)
	}
}

// runShots samples the circuit. Density mode samples the exact mixed state;
// a stochastic grid in trajectory mode spreads the shots over independently
// drawn trajectories; a deterministic grid samples one state directly.
func (m *Model) runShots() {
	run := &runResult{shots: m.shots, mode: "trajectory"}
	if m.useDensity {
		run.mode = "density"
	}
	defer func() {
		m.run = run
		m.seed++
		m.refreshSim()
	}()

	n := m.grid.qubits
	samples, err := m.collectSamples()
	if err != nil {
		run.err = err.Error()
		return
	}

	if m.readout {
		confs := make([]results.Confusion, n)
		for q := range confs {
			confs[q] = results.FlipConfusion(readoutP01, readoutP10)
		}
		noisy, err := results.ApplyReadoutError(samples, n, confs, backend.NewSource(m.seed+1))
		if err != nil {
			run.err = err.Error()
			return
		}
		samples = noisy
		run.counts = results.FromSamples(samples, n)
		mit, err := results.NewMitigator(confs)
		if err != nil {
			run.err = err.Error()
			return
		}
		corrected, err := mit.Mitigate(run.counts, results.MethodInverse)
		if err != nil {
			run.err = err.Error()
			return
		}
		run.mitigated = corrected
		return
	}
	run.counts = results.FromSamples(samples, n)
}

func (m *Model) collectSamples() ([]uint64, error) {
	if m.useDensity {
		d, err := m.grid.density()
		if err != nil {
			return nil, err
		}
		return d.Sample(m.shots, circuit.WithSource(backend.NewSource(m.seed)))
	}
	if !m.grid.stochastic() {
		c, err := m.grid.trajectory(backend.NewSource(m.seed))
		if err != nil {
			return nil, err
		}
		return c.Sample(m.shots, circuit.WithSource(backend.NewSource(m.seed)))
	}

	ntraj := min(m.shots, trajectoryShots)
	per, rem := m.shots/ntraj, m.shots%ntraj
	samples := make([]uint64, 0, m.shots)
	for t := 0; t < ntraj; t++ {
		src := backend.NewSource(m.seed + int64(t))
		c, err := m.grid.trajectory(src)
		if err != nil {
			return nil, err
		}
		take := per
		if t < rem {
			take++
		}
		if take == 0 {
			continue
		}
		s, err := c.Sample(take, circuit.WithSource(src))
		if err != nil {
			return nil, err
		}
		samples = append(samples, s...)
	}
	return samples, nil
}
