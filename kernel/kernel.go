// Package kernel provides the smoothing kernels used by the SPH solver:
// a cubic-spline interpolation kernel for density and pressure terms, a
// cohesion/adhesion kernel for surface tension and boundary wetting, and
// a boundary kernel shaped by the boundary sound speed.
//
// All kernels evaluate to exactly zero at or beyond their support radius,
// so callers may skip explicit range checks.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// distEps floors separation distances when normalizing a displacement
// vector. Coincident samples must yield a zero gradient, not a NaN.
const distEps = 1e-12

// Monaghan is the cubic-spline interpolation kernel. Its support ends at
// twice the smoothing radius given to NewMonaghan.
type Monaghan struct {
	h      float64
	invH   float64
	valueC float64 // 1/(4πh³)
	gradC  float64 // 1/(4πh⁴)
}

// NewMonaghan builds an interpolation kernel for smoothing radius h.
func NewMonaghan(h float64) Monaghan {
	return Monaghan{
		h:      h,
		invH:   1.0 / h,
		valueC: 1.0 / (4.0 * math.Pi * h * h * h),
		gradC:  1.0 / (4.0 * math.Pi * h * h * h * h),
	}
}

// SmoothingRadius returns the radius the kernel was built with.
func (k Monaghan) SmoothingRadius() float64 { return k.h }

// Support returns the radius beyond which Value and Gradient vanish.
func (k Monaghan) Support() float64 { return 2.0 * k.h }

// Value evaluates the kernel for displacement r.
func (k Monaghan) Value(r r3.Vec) float64 {
	q := r3.Norm(r) * k.invH
	switch {
	case q < 1.0:
		a, b := 2.0-q, 1.0-q
		return k.valueC * (a*a*a - 4.0*b*b*b)
	case q < 2.0:
		a := 2.0 - q
		return k.valueC * a * a * a
	default:
		return 0.0
	}
}

// Gradient evaluates the analytic gradient of Value at displacement r.
func (k Monaghan) Gradient(r r3.Vec) r3.Vec {
	dist := r3.Norm(r)
	q := dist * k.invH
	var scalar float64
	switch {
	case q < 1.0:
		a, b := 2.0-q, 1.0-q
		scalar = -3.0*a*a + 12.0*b*b
	case q < 2.0:
		a := 2.0 - q
		scalar = -3.0 * a * a
	default:
		return r3.Vec{}
	}
	if dist < distEps {
		return r3.Vec{}
	}
	return r3.Scale(k.gradC*scalar/dist, r)
}

// Akinci is the cohesion/adhesion kernel pair. Cohesion pulls free-surface
// fluid particles together; Adhesion pulls fluid onto boundary samples.
// The support radius passed to NewAkinci is the full interaction cutoff,
// conventionally twice the smoothing radius.
type Akinci struct {
	h         float64
	cohesionC float64 // 32/(πh⁹)
	cohesionO float64 // h⁶/64
	adhesionC float64 // 0.007/h^3.25
}

// NewAkinci builds a cohesion/adhesion kernel with support radius h.
func NewAkinci(h float64) Akinci {
	h3 := h * h * h
	h6 := h3 * h3
	return Akinci{
		h:         h,
		cohesionC: 32.0 / (math.Pi * h6 * h3),
		cohesionO: h6 / 64.0,
		adhesionC: 0.007 / math.Pow(h, 3.25),
	}
}

// Support returns the radius beyond which both terms vanish.
func (k Akinci) Support() float64 { return k.h }

// Cohesion evaluates the surface-tension weight at separation dist.
func (k Akinci) Cohesion(dist float64) float64 {
	if dist <= 0.0 || dist > k.h {
		return 0.0
	}
	a := k.h - dist
	c := a * a * a * dist * dist * dist
	if 2.0*dist > k.h {
		return k.cohesionC * c
	}
	return k.cohesionC * (2.0*c - k.cohesionO)
}

// Adhesion evaluates the boundary-wetting weight at separation dist.
// It is nonzero only on the outer half of the support.
func (k Akinci) Adhesion(dist float64) float64 {
	if 2.0*dist <= k.h || dist > k.h {
		return 0.0
	}
	return k.adhesionC * math.Pow(-4.0*dist*dist/k.h+6.0*dist-2.0*k.h, 0.25)
}

// Boundary is the wall-repulsion kernel parameterized by the boundary
// smoothing length and the speed of sound.
type Boundary struct {
	h   float64
	cs2 float64
}

// NewBoundary builds a boundary kernel for smoothing length h and speed
// of sound cs.
func NewBoundary(h, cs float64) Boundary {
	return Boundary{h: h, cs2: cs * cs}
}

// Gamma evaluates the boundary force shape at separation dist.
func (k Boundary) Gamma(dist float64) float64 {
	if dist < distEps {
		dist = distEps
	}
	q := dist / k.h
	var coeff float64
	switch {
	case q < 2.0/3.0:
		coeff = 2.0 / 3.0
	case q < 1.0:
		coeff = 2.0*q - 1.5*q*q
	case q < 2.0:
		a := 2.0 - q
		coeff = 0.5 * a * a
	}
	return 0.02 * k.cs2 / dist * coeff
}
