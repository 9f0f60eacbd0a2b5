package band

import (
	"context"
	"testing"

	"github.com/mitric-lab/NEB/internal/neb/surfaces"
)

// BenchmarkRefresh measures one full evaluate/tangent/force pass over a
// 30-image chain on the double-well surface.
func BenchmarkRefresh(b *testing.B) {
	p, err := New(Config{Workers: 4}, surfaces.NewDoubleWell(1.0, 1.5, 1.0))
	if err != nil {
		b.Fatalf("failed to create optimizer: %v", err)
	}
	if err := p.SetImages([][]float64{{-1.5, 0, 0}, {1.5, 0, 0}}, []int{0, 0}); err != nil {
		b.Fatalf("failed to set images: %v", err)
	}
	if err := p.AddImagesLinearly(30); err != nil {
		b.Fatalf("failed to interpolate images: %v", err)
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := p.refresh(ctx, false); err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
	}
}

// BenchmarkFindPath measures a full relaxation of a short harmonic chain.
func BenchmarkFindPath(b *testing.B) {
	opts := Options{
		Tolerance: 1e-4,
		MaxSteps:  500,
		TimeStep:  0.1,
		Friction:  0.1,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		p, err := New(Config{}, surfaces.NewHarmonic(1.0))
		if err != nil {
			b.Fatalf("failed to create optimizer: %v", err)
		}
		if err := p.SetImages([][]float64{{0, 0, 0}, {1, 0, 0}}, []int{0, 0}); err != nil {
			b.Fatalf("failed to set images: %v", err)
		}
		if err := p.AddImagesLinearly(5); err != nil {
			b.Fatalf("failed to interpolate images: %v", err)
		}
		b.StartTimer()

		if _, err := p.FindPath(context.Background(), opts); err != nil {
			b.Fatalf("relaxation failed: %v", err)
		}
	}
}
