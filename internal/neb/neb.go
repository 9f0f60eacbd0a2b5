package neb

import (
	"context"
)

// Evaluator computes the potential energy and its gradient for a single
// configuration on the requested electronic state. Implementations may be
// expensive (external electronic-structure programs) and must be safe for
// concurrent invocation on independent configurations.
type Evaluator interface {
	// Evaluate returns the energy and gradient at conf. The gradient has the
	// same length as conf. The resources hint is passed through unchanged.
	Evaluate(ctx context.Context, conf []float64, state int, res Resources) (float64, []float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, conf []float64, state int, res Resources) (float64, []float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, conf []float64, state int, res Resources) (float64, []float64, error) {
	return f(ctx, conf, state, res)
}

// Observer is notified once per accepted relaxation step. The callback is
// side-effect only: return values are not consumed and the optimizer does not
// wait on anything beyond the call itself. Images and energies are copies.
type Observer interface {
	OnStep(step int, images [][]float64, energies []float64)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(step int, images [][]float64, energies []float64)

// OnStep calls f.
func (f ObserverFunc) OnStep(step int, images [][]float64, energies []float64) {
	f(step, images, energies)
}

// Resources is an opaque hint describing the resources an evaluator may use
// for a single image calculation. The optimizer never interprets it.
type Resources struct {
	// Procs is the processor count per image calculation.
	Procs int
	// Memory is the memory allowance per image calculation, e.g. "6Gb".
	Memory string
}

// Atom is one entry of the geometry template. It fixes the expected
// configuration dimension (three coordinates per atom) and carries the
// element identity for callers that need it.
type Atom struct {
	// Symbol is the element symbol, e.g. "C".
	Symbol string
	// Z is the atomic number.
	Z int
}

// Status is the terminal state of a relaxation run.
type Status int

const (
	// Converged means the average effective force dropped below tolerance.
	Converged Status = iota
	// Exhausted means the step budget ran out before convergence. It is a
	// normal outcome, not an error: the result carries the last chain so a
	// caller can resume or report.
	Exhausted
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result is the outcome of a relaxation run.
type Result struct {
	// Status is Converged or Exhausted.
	Status Status
	// Images is the final chain of configurations.
	Images [][]float64
	// States holds the electronic state label of each image.
	States []int
	// Energies holds the last computed energy of each image.
	Energies []float64
	// AvgForce is the last average effective force over the chain.
	AvgForce float64
	// Steps is the number of integration steps taken.
	Steps int
}
