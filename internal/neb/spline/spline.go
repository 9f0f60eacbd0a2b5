// Package spline provides post-hoc continuous interpolation of a relaxed
// reaction path: a cubic Hermite energy profile and a piecewise-linear
// geometry interpolation, both parametrized by a reaction coordinate running
// from 0 (educt) to 1 (product) over the arclength of the chain.
package spline

import (
	"gonum.org/v1/gonum/floats"

	"github.com/mitric-lab/NEB/internal/neb"
)

// Profile interpolates the energy along a relaxed path. Between images the
// energy is a cubic Hermite polynomial built from the image energies and the
// directional derivative of the energy along the local path direction;
// geometry changes are assumed locally linear, energy benefits from the
// curvature information.
type Profile struct {
	x  []float64 // arclength knots
	f  []float64 // energies at the knots
	f1 []float64 // dE/ds along the local path direction
}

// NewProfile builds an energy profile from a chain of images, their energies
// and the true forces acting on them.
func NewProfile(images [][]float64, energies []float64, forces [][]float64) (*Profile, error) {
	const op = "spline.NewProfile"

	if err := checkChain(op, images); err != nil {
		return nil, err
	}
	if len(energies) != len(images) || len(forces) != len(images) {
		return nil, neb.InvalidInputError(op, "got %d images, %d energies, %d forces",
			len(images), len(energies), len(forces))
	}

	n := len(images)
	f1 := make([]float64, n)
	for i := 0; i < n; i++ {
		var t []float64
		if i == 0 {
			t = diff(images[1], images[0])
		} else {
			t = diff(images[i], images[i-1])
		}
		// dE/ds = -grad . t/|t| = F . t/|t|
		f1[i] = floats.Dot(forces[i], t) / floats.Norm(t, 2)
	}

	return &Profile{
		x:  arclengths(images),
		f:  append([]float64(nil), energies...),
		f1: f1,
	}, nil
}

// Energy evaluates the profile at reaction coordinate r in [0,1].
func (p *Profile) Energy(r float64) (float64, error) {
	const op = "Profile.Energy"

	if r < 0.0 || r > 1.0 {
		return 0, neb.DomainError(op, "reaction coordinate %v outside [0,1]", r)
	}

	s := r * p.x[len(p.x)-1]
	ic := bracket(p.x, s)
	if s == p.x[ic] {
		return p.f[ic], nil
	}

	dx := p.x[ic+1] - p.x[ic]
	df := p.f[ic+1] - p.f[ic]
	a := (s - p.x[ic]) / dx
	return (1.0-a)*p.f[ic] + a*p.f[ic+1] +
		a*(1.0-a)*((1.0-a)*(-p.f1[ic]*dx-df)+a*(p.f1[ic+1]*dx+df)), nil
}

// Path interpolates the geometry along a relaxed path linearly between
// bracketing images.
type Path struct {
	x      []float64
	images [][]float64
}

// NewPath builds a geometry interpolation from a chain of images.
func NewPath(images [][]float64) (*Path, error) {
	const op = "spline.NewPath"

	if err := checkChain(op, images); err != nil {
		return nil, err
	}
	copied := make([][]float64, len(images))
	for i, img := range images {
		copied[i] = append([]float64(nil), img...)
	}
	return &Path{x: arclengths(copied), images: copied}, nil
}

// Geometry evaluates the path at reaction coordinate r in [0,1].
func (p *Path) Geometry(r float64) ([]float64, error) {
	const op = "Path.Geometry"

	if r < 0.0 || r > 1.0 {
		return nil, neb.DomainError(op, "reaction coordinate %v outside [0,1]", r)
	}

	s := r * p.x[len(p.x)-1]
	ic := bracket(p.x, s)
	if s == p.x[ic] {
		return append([]float64(nil), p.images[ic]...), nil
	}

	a := (s - p.x[ic]) / (p.x[ic+1] - p.x[ic])
	out := make([]float64, len(p.images[ic]))
	for k := range out {
		out[k] = (1.0-a)*p.images[ic][k] + a*p.images[ic+1][k]
	}
	return out, nil
}

// arclengths returns the cumulative Euclidean distance along the chain,
// starting at zero.
func arclengths(images [][]float64) []float64 {
	x := make([]float64, len(images))
	for i := 1; i < len(images); i++ {
		x[i] = x[i-1] + floats.Distance(images[i], images[i-1], 2)
	}
	return x
}

// bracket returns the largest segment index ic with x[ic] <= s, clamped so
// that ic+1 is always a valid knot.
func bracket(x []float64, s float64) int {
	ic := len(x) - 2
	for ic > 0 && x[ic] > s {
		ic--
	}
	return ic
}

func checkChain(op string, images [][]float64) error {
	if len(images) < 2 {
		return neb.InvalidInputError(op, "need at least 2 images, got %d", len(images))
	}
	dim := len(images[0])
	for i, img := range images {
		if len(img) != dim {
			return neb.InvalidInputError(op, "image %d has dimension %d, expected %d", i, len(img), dim)
		}
	}
	return nil
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	floats.SubTo(out, a, b)
	return out
}
