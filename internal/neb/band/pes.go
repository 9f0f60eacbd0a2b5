package band

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/mitric-lab/NEB/internal/neb"
)

// evaluatePES computes energies and true forces for every image of the
// chain, fanning out across at most cfg.Workers concurrent evaluator calls.
// Results are committed by image index, never by arrival order, and only
// after the whole fan-out succeeded: a failure in any image leaves the
// previously committed energies and forces untouched.
func (p *PathOptimizer) evaluatePES(ctx context.Context) error {
	const op = "PathOptimizer.evaluatePES"

	n := len(p.images)
	energies := make([]float64, n)
	forces := make([][]float64, n)
	errs := make([]error, n)

	workers := p.cfg.Workers
	if workers > n {
		workers = n
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// The evaluator gets its own copy so concurrent invocations
			// cannot share mutable state.
			conf := append([]float64(nil), p.images[i]...)
			energy, gradient, err := p.evaluator.Evaluate(ctx, conf, p.states[i], p.cfg.Resources)
			if err != nil {
				errs[i] = err
				return
			}
			if len(gradient) != len(conf) {
				errs[i] = fmt.Errorf("gradient has length %d, expected %d", len(gradient), len(conf))
				return
			}

			force := make([]float64, len(gradient))
			floats.ScaleTo(force, -1.0, gradient)
			energies[i] = energy
			forces[i] = force
		}(i)
	}
	wg.Wait()

	var failed []int
	var cause error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, i)
			if cause == nil {
				cause = err
			}
		}
	}
	if len(failed) > 0 {
		return neb.EvaluationError(op, failed, cause)
	}

	for i := 0; i < n; i++ {
		p.logger.Debug("evaluated image",
			zap.Int("image", i),
			zap.Int("state", p.states[i]),
			zap.Float64("energy", energies[i]),
			zap.Float64("grad_norm", floats.Norm(forces[i], 2)),
		)
	}

	p.energies = energies
	p.forces = forces
	p.evaluated = true
	return nil
}
