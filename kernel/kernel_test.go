package kernel

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestMonaghanSupport(t *testing.T) {
	k := NewMonaghan(0.1)

	tests := []struct {
		name string
		dist float64
	}{
		{"at support", 0.2},
		{"just beyond", 0.2000001},
		{"far beyond", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := r3.Vec{X: tt.dist}
			if v := k.Value(r); v != 0 {
				t.Errorf("Value(%v) = %v, want exactly 0", tt.dist, v)
			}
			if g := k.Gradient(r); g != (r3.Vec{}) {
				t.Errorf("Gradient(%v) = %v, want zero vector", tt.dist, g)
			}
		})
	}
}

// On a cubic lattice with spacing equal to the smoothing radius, the
// discrete sum of mass-weighted kernel values approximates the rest
// density. This is the normalization property density estimation relies on.
func TestMonaghanNormalization(t *testing.T) {
	const (
		h           = 0.1
		restDensity = 1000.0
	)
	k := NewMonaghan(h)
	mass := restDensity * h * h * h

	sum := 0.0
	for i := -3; i <= 3; i++ {
		for j := -3; j <= 3; j++ {
			for l := -3; l <= 3; l++ {
				r := r3.Vec{X: float64(i) * h, Y: float64(j) * h, Z: float64(l) * h}
				sum += mass * k.Value(r)
			}
		}
	}

	if math.Abs(sum-restDensity)/restDensity > 0.02 {
		t.Errorf("lattice density = %v, want %v within 2%%", sum, restDensity)
	}
}

func TestMonaghanGradientIsDerivative(t *testing.T) {
	const h = 0.25
	k := NewMonaghan(h)

	// Finite-difference check of the radial derivative at several radii,
	// away from the q=1 spline knot.
	for _, dist := range []float64{0.3 * h, 0.7 * h, 1.3 * h, 1.8 * h} {
		const eps = 1e-7
		fd := (k.Value(r3.Vec{X: dist + eps}) - k.Value(r3.Vec{X: dist - eps})) / (2 * eps)
		grad := k.Gradient(r3.Vec{X: dist}).X
		if math.Abs(grad-fd) > 1e-4*math.Abs(fd)+1e-8 {
			t.Errorf("dist %v: gradient %v, finite difference %v", dist, grad, fd)
		}
	}
}

func TestMonaghanGradientAntisymmetric(t *testing.T) {
	k := NewMonaghan(0.1)
	r := r3.Vec{X: 0.05, Y: -0.03, Z: 0.08}
	g1 := k.Gradient(r)
	g2 := k.Gradient(r3.Scale(-1, r))
	if g1 != r3.Scale(-1, g2) {
		t.Errorf("gradient not antisymmetric: %v vs %v", g1, g2)
	}
}

func TestMonaghanCoincidentSamples(t *testing.T) {
	k := NewMonaghan(0.1)
	g := k.Gradient(r3.Vec{})
	if g != (r3.Vec{}) {
		t.Errorf("Gradient at zero separation = %v, want zero vector", g)
	}
	if v := k.Value(r3.Vec{}); math.IsNaN(v) || v <= 0 {
		t.Errorf("Value at zero separation = %v, want finite positive", v)
	}
}

func TestAkinciCohesionSupport(t *testing.T) {
	const h = 0.2
	k := NewAkinci(h)

	tests := []struct {
		name     string
		dist     float64
		wantZero bool
	}{
		{"zero separation", 0, true},
		{"inner half", 0.05, false},
		{"outer half", 0.15, false},
		{"at support", h, true},
		{"beyond support", h + 1e-9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := k.Cohesion(tt.dist)
			if tt.wantZero && v != 0 {
				t.Errorf("Cohesion(%v) = %v, want 0", tt.dist, v)
			}
			if !tt.wantZero && (math.IsNaN(v) || v == 0 && tt.dist > 0.6*h) {
				t.Errorf("Cohesion(%v) = %v, want nonzero finite", tt.dist, v)
			}
		})
	}
}

func TestAkinciAdhesionWindow(t *testing.T) {
	const h = 0.2
	k := NewAkinci(h)

	if v := k.Adhesion(0.4 * h); v != 0 {
		t.Errorf("Adhesion inside half support = %v, want 0", v)
	}
	if v := k.Adhesion(0.75 * h); v <= 0 || math.IsNaN(v) {
		t.Errorf("Adhesion(0.75h) = %v, want positive", v)
	}
	if v := k.Adhesion(h + 1e-9); v != 0 {
		t.Errorf("Adhesion beyond support = %v, want 0", v)
	}
}

func TestBoundaryGamma(t *testing.T) {
	k := NewBoundary(0.05, 10.0)

	// Positive and finite through the whole support, zero past it.
	for _, q := range []float64{0.1, 0.5, 0.8, 1.5} {
		v := k.Gamma(q * 0.05)
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("Gamma(q=%v) = %v, want positive finite", q, v)
		}
	}
	if v := k.Gamma(2.5 * 0.05); v != 0 {
		t.Errorf("Gamma beyond support = %v, want 0", v)
	}
	// Coincident sample must not divide by zero.
	if v := k.Gamma(0); math.IsInf(v, 0) || math.IsNaN(v) {
		t.Errorf("Gamma(0) = %v, want finite", v)
	}
}
