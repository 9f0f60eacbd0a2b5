// Package surfaces provides analytic model potential-energy surfaces. They
// implement the evaluator capability of the optimizer and stand in for
// external electronic-structure programs in the service and in tests.
package surfaces

import (
	"context"
	"fmt"
	"math"

	"github.com/mitric-lab/NEB/internal/neb"
)

// Harmonic is an isotropic harmonic well V = k * sum (x_i - c_i)^2. It is
// independent of the electronic state label.
type Harmonic struct {
	// Force constant of the well.
	k float64
	// Center of the well; nil means the origin.
	center []float64
}

// NewHarmonic creates a harmonic well centered at the origin.
func NewHarmonic(k float64) *Harmonic {
	if k <= 0 {
		panic(fmt.Sprintf("force constant must be positive, got %v", k))
	}
	return &Harmonic{k: k}
}

// NewHarmonicAt creates a harmonic well centered at c.
func NewHarmonicAt(k float64, c []float64) *Harmonic {
	h := NewHarmonic(k)
	h.center = append([]float64(nil), c...)
	return h
}

// Evaluate returns V and its gradient 2k(x-c).
func (h *Harmonic) Evaluate(_ context.Context, conf []float64, _ int, _ neb.Resources) (float64, []float64, error) {
	if len(conf) == 0 {
		return 0, nil, fmt.Errorf("empty configuration")
	}
	if h.center != nil && len(h.center) != len(conf) {
		return 0, nil, fmt.Errorf("configuration has dimension %d, well center has %d", len(conf), len(h.center))
	}

	energy := 0.0
	grad := make([]float64, len(conf))
	for i, x := range conf {
		if h.center != nil {
			x -= h.center[i]
		}
		energy += h.k * x * x
		grad[i] = 2.0 * h.k * x
	}
	return energy, grad, nil
}

// DoubleWell is a symmetric quartic double well along the first coordinate,
// V(q) = h*((q^2-a^2)/a^2)^2, with minima at q = -a and q = +a and barrier
// height h at q = 0. Remaining coordinates are confined harmonically.
type DoubleWell struct {
	height     float64
	spacing    float64
	transverse float64
}

// NewDoubleWell creates a double well with barrier height h and minima at
// +-a. The transverse force constant confines all other coordinates.
func NewDoubleWell(h, a, transverse float64) *DoubleWell {
	if h <= 0 || a <= 0 || transverse < 0 {
		panic(fmt.Sprintf("invalid double well parameters h=%v a=%v transverse=%v", h, a, transverse))
	}
	return &DoubleWell{height: h, spacing: a, transverse: transverse}
}

// Evaluate returns the double-well energy and gradient.
func (w *DoubleWell) Evaluate(_ context.Context, conf []float64, _ int, _ neb.Resources) (float64, []float64, error) {
	if len(conf) == 0 {
		return 0, nil, fmt.Errorf("empty configuration")
	}

	q := conf[0]
	a2 := w.spacing * w.spacing
	u := (q*q - a2) / a2

	energy := w.height * u * u
	grad := make([]float64, len(conf))
	grad[0] = 4.0 * w.height * q * u / a2
	for i := 1; i < len(conf); i++ {
		energy += w.transverse * conf[i] * conf[i]
		grad[i] = 2.0 * w.transverse * conf[i]
	}
	return energy, grad, nil
}

// AvoidedCrossing is a two-state model along the first coordinate: two
// shifted harmonic diabats V1 = k/2 (q+d)^2 and V2 = k/2 (q-d)^2 + gap,
// mixed by a constant coupling. State label 0 selects the lower adiabat,
// 1 the upper one. Remaining coordinates are confined harmonically and do
// not couple the states.
type AvoidedCrossing struct {
	k          float64
	shift      float64
	gap        float64
	coupling   float64
	transverse float64
}

// NewAvoidedCrossing creates a two-state avoided-crossing surface.
func NewAvoidedCrossing(k, shift, gap, coupling, transverse float64) *AvoidedCrossing {
	if k <= 0 || shift <= 0 || coupling <= 0 || transverse < 0 {
		panic(fmt.Sprintf("invalid avoided crossing parameters k=%v shift=%v coupling=%v transverse=%v",
			k, shift, coupling, transverse))
	}
	return &AvoidedCrossing{k: k, shift: shift, gap: gap, coupling: coupling, transverse: transverse}
}

// Evaluate returns the adiabatic energy and gradient for the given state.
func (s *AvoidedCrossing) Evaluate(_ context.Context, conf []float64, state int, _ neb.Resources) (float64, []float64, error) {
	if len(conf) == 0 {
		return 0, nil, fmt.Errorf("empty configuration")
	}
	if state != 0 && state != 1 {
		return 0, nil, fmt.Errorf("state %d not supported, surface has states 0 and 1", state)
	}

	q := conf[0]
	v1 := 0.5 * s.k * (q + s.shift) * (q + s.shift)
	v2 := 0.5*s.k*(q-s.shift)*(q-s.shift) + s.gap
	dv1 := s.k * (q + s.shift)
	dv2 := s.k * (q - s.shift)

	mean := 0.5 * (v1 + v2)
	dmean := 0.5 * (dv1 + dv2)
	delta := 0.5 * (v1 - v2)
	ddelta := 0.5 * (dv1 - dv2)
	root := math.Sqrt(delta*delta + s.coupling*s.coupling)

	sign := -1.0
	if state == 1 {
		sign = 1.0
	}
	energy := mean + sign*root
	grad := make([]float64, len(conf))
	grad[0] = dmean + sign*delta*ddelta/root
	for i := 1; i < len(conf); i++ {
		energy += s.transverse * conf[i] * conf[i]
		grad[i] = 2.0 * s.transverse * conf[i]
	}
	return energy, grad, nil
}

// Lookup returns a surface with default parameters by name. Names are the
// ones accepted by the HTTP API.
func Lookup(name string) (neb.Evaluator, error) {
	switch name {
	case "harmonic":
		return NewHarmonic(1.0), nil
	case "double_well":
		return NewDoubleWell(1.0, 1.0, 1.0), nil
	case "avoided_crossing":
		return NewAvoidedCrossing(1.0, 1.0, 0.0, 0.2, 1.0), nil
	default:
		return nil, fmt.Errorf("unknown surface %q", name)
	}
}
