package band

import (
	"context"

	"go.uber.org/zap"

	"github.com/mitric-lab/NEB/internal/neb"
)

// Options control a single FindPath run.
type Options struct {
	// Tolerance stops the run once the average effective force drops
	// below it.
	Tolerance float64

	// MaxSteps bounds the number of integration steps.
	MaxSteps int

	// TimeStep is the integration time step dt.
	TimeStep float64

	// Friction in [0,1) damps oscillations of the damped-Verlet scheme.
	Friction float64

	// OptimizeEndpoints lets the end images relax toward their own
	// minima instead of staying fixed.
	OptimizeEndpoints bool
}

func (o Options) validate() error {
	const op = "band.Options"

	if o.Tolerance <= 0 {
		return neb.InvalidInputError(op, "tolerance must be positive, got %v", o.Tolerance)
	}
	if o.MaxSteps < 1 {
		return neb.InvalidInputError(op, "max steps must be at least 1, got %d", o.MaxSteps)
	}
	if o.TimeStep <= 0 {
		return neb.InvalidInputError(op, "time step must be positive, got %v", o.TimeStep)
	}
	if o.Friction < 0 || o.Friction >= 1 {
		return neb.InvalidInputError(op, "friction must be in [0,1), got %v", o.Friction)
	}
	return nil
}

// FindPath relaxes the chain with damped dynamics until the average
// effective force drops below the tolerance or the step budget is spent.
// Running out of steps is a normal outcome: the result carries status
// Exhausted together with the last chain and average force so a caller can
// resume or report. Only evaluator failures and cancellation return errors.
func (p *PathOptimizer) FindPath(ctx context.Context, opts Options) (*neb.Result, error) {
	const op = "PathOptimizer.FindPath"

	if len(p.images) < 2 {
		return nil, neb.InvalidInputError(op, "chain has %d images, need at least 2", len(p.images))
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	// Forces at the starting chain drive the first step.
	if err := p.refresh(ctx, opts.OptimizeEndpoints); err != nil {
		return nil, err
	}

	// R(t-dt), needed by the Verlet update. At step 0 no history exists
	// yet and a pure Euler half-step is taken instead.
	prev := cloneChain(p.images)
	dt2 := opts.TimeStep * opts.TimeStep
	avg := p.averageForce(opts.OptimizeEndpoints)
	steps := 0

	for step := 0; step < opts.MaxSteps; step++ {
		p.integrate(step, prev, dt2, opts)
		if err := p.refresh(ctx, opts.OptimizeEndpoints); err != nil {
			return nil, err
		}
		steps = step + 1
		avg = p.averageForce(opts.OptimizeEndpoints)

		p.logger.Info("relaxation step",
			zap.Int("step", step),
			zap.Float64("avg_force", avg),
			zap.Float64("tolerance", opts.Tolerance),
		)
		p.notify(step)

		if avg < opts.Tolerance {
			return p.result(neb.Converged, avg, steps), nil
		}
	}

	p.logger.Warn("step budget exhausted before convergence",
		zap.Int("steps", steps),
		zap.Float64("avg_force", avg),
		zap.Float64("tolerance", opts.Tolerance),
	)
	return p.result(neb.Exhausted, avg, steps), nil
}

// refresh recomputes energies, tangents and effective forces for the
// current chain. All image evaluations must complete before any force is
// assembled; a failed evaluation abandons the step.
func (p *PathOptimizer) refresh(ctx context.Context, optimizeEndpoints bool) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := p.evaluatePES(ctx); err != nil {
		return err
	}
	p.computeTangents()
	p.computeEffectiveForces(optimizeEndpoints)
	return nil
}

// integrate advances every movable image by one time step. Step 0 is a pure
// Euler half-step without velocity history; later steps use damped Verlet,
// which folds the friction into the position update and needs no separate
// velocity variable.
func (p *PathOptimizer) integrate(step int, prev [][]float64, dt2 float64, opts Options) {
	n := len(p.images)
	for i := 0; i < n; i++ {
		if (i == 0 || i == n-1) && !opts.OptimizeEndpoints {
			continue
		}
		cur := p.images[i]
		next := make([]float64, len(cur))
		if step == 0 {
			for k := range cur {
				next[k] = cur[k] + 0.5*p.effective[i][k]/p.cfg.Mass*dt2
			}
		} else {
			for k := range cur {
				next[k] = (2.0-opts.Friction)*cur[k] -
					(1.0-opts.Friction)*prev[i][k] +
					p.effective[i][k]/p.cfg.Mass*dt2
			}
		}
		prev[i] = cur
		p.images[i] = next
	}
}

// notify hands a snapshot of the chain to the observer, if any.
func (p *PathOptimizer) notify(step int) {
	if p.cfg.Observer == nil {
		return
	}
	p.cfg.Observer.OnStep(step, cloneChain(p.images), append([]float64(nil), p.energies...))
}

func (p *PathOptimizer) result(status neb.Status, avgForce float64, steps int) *neb.Result {
	return &neb.Result{
		Status:   status,
		Images:   cloneChain(p.images),
		States:   append([]int(nil), p.states...),
		Energies: append([]float64(nil), p.energies...),
		AvgForce: avgForce,
		Steps:    steps,
	}
}
