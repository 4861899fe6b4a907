package backend

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ScalarFunc is a pure function from parameters to one real value, typically
// a contracted expectation. Purity is what makes the transforms below
// composable: Grad(f) and Batch over f may be nested in either order. The
// ordering is a numerical-stability choice, not a correctness one.
type ScalarFunc func(params []float64) (float64, error)

// VectorFunc is a pure function from parameters to a real vector.
type VectorFunc func(params []float64) ([]float64, error)

// defaultStep is the central-difference step for Grad and Jacobian.
const defaultStep = 1e-5

// TransformOption tunes a functional transform.
type TransformOption func(*transformConfig)

type transformConfig struct {
	step  float64
	limit int
}

func newTransformConfig(opts []TransformOption) transformConfig {
	cfg := transformConfig{step: defaultStep, limit: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithStep sets the finite-difference step size.
func WithStep(h float64) TransformOption {
	return func(cfg *transformConfig) { cfg.step = h }
}

// WithParallelism bounds the number of concurrent evaluations in Batch.
func WithParallelism(n int) TransformOption {
	return func(cfg *transformConfig) {
		if n > 0 {
			cfg.limit = n
		}
	}
}

// Grad returns the gradient of f by central differences. The returned
// function is itself pure, so it can be passed to Batch or nested again
// for second derivatives.
func Grad(f ScalarFunc, opts ...TransformOption) VectorFunc {
	cfg := newTransformConfig(opts)
	return func(params []float64) ([]float64, error) {
		grad := make([]float64, len(params))
		shifted := make([]float64, len(params))
		for i := range params {
			copy(shifted, params)
			shifted[i] = params[i] + cfg.step
			up, err := f(shifted)
			if err != nil {
				return nil, errors.Wrapf(err, "grad: eval at +h for param %d", i)
			}
			shifted[i] = params[i] - cfg.step
			down, err := f(shifted)
			if err != nil {
				return nil, errors.Wrapf(err, "grad: eval at -h for param %d", i)
			}
			grad[i] = (up - down) / (2 * cfg.step)
		}
		return grad, nil
	}
}

// Jacobian returns the Jacobian of f by central differences, one row per
// output component.
func Jacobian(f VectorFunc, opts ...TransformOption) func(params []float64) ([][]float64, error) {
	cfg := newTransformConfig(opts)
	return func(params []float64) ([][]float64, error) {
		shifted := make([]float64, len(params))
		var jac [][]float64
		for i := range params {
			copy(shifted, params)
			shifted[i] = params[i] + cfg.step
			up, err := f(shifted)
			if err != nil {
				return nil, errors.Wrapf(err, "jacobian: eval at +h for param %d", i)
			}
			shifted[i] = params[i] - cfg.step
			down, err := f(shifted)
			if err != nil {
				return nil, errors.Wrapf(err, "jacobian: eval at -h for param %d", i)
			}
			if len(up) != len(down) {
				return nil, Shapef("backend.Jacobian", "output size changed between evaluations (%d vs %d)", len(up), len(down))
			}
			if jac == nil {
				jac = make([][]float64, len(up))
				for r := range jac {
					jac[r] = make([]float64, len(params))
				}
			}
			for r := range up {
				jac[r][i] = (up[r] - down[r]) / (2 * cfg.step)
			}
		}
		if jac == nil {
			jac = [][]float64{}
		}
		return jac, nil
	}
}

// Batch maps f over a leading batch dimension of parameter sets. Elements
// are evaluated data-parallel with bounded concurrency; each evaluation is
// independent and synchronous, matching the engine's execution model.
func Batch(ctx context.Context, f ScalarFunc, batch [][]float64, opts ...TransformOption) ([]float64, error) {
	cfg := newTransformConfig(opts)
	out := make([]float64, len(batch))
	sem := semaphore.NewWeighted(int64(cfg.limit))
	g, ctx := errgroup.WithContext(ctx)
	for i := range batch {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			// A failed acquire usually means an element already failed and
			// cancelled the group context; its error wins.
			if gerr := g.Wait(); gerr != nil {
				return nil, gerr
			}
			return nil, errors.Wrap(err, "batch: acquire slot")
		}
		g.Go(func() error {
			defer sem.Release(1)
			v, err := f(batch[i])
			if err != nil {
				return errors.Wrapf(err, "batch: element %d", i)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchVector maps a VectorFunc over a leading batch dimension, e.g. a
// gradient produced by Grad. Batch(Grad(f)) and Grad over batched inputs
// agree; pick the nesting that keeps step sizes well conditioned.
func BatchVector(ctx context.Context, f VectorFunc, batch [][]float64, opts ...TransformOption) ([][]float64, error) {
	cfg := newTransformConfig(opts)
	out := make([][]float64, len(batch))
	sem := semaphore.NewWeighted(int64(cfg.limit))
	g, ctx := errgroup.WithContext(ctx)
	for i := range batch {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			// A failed acquire usually means an element already failed and
			// cancelled the group context; its error wins.
			if gerr := g.Wait(); gerr != nil {
				return nil, gerr
			}
			return nil, errors.Wrap(err, "batch: acquire slot")
		}
		g.Go(func() error {
			defer sem.Release(1)
			v, err := f(batch[i])
			if err != nil {
				return errors.Wrapf(err, "batch: element %d", i)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
