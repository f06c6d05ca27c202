package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Method selects the pressure-solver strategy.
type Method string

const (
	// MethodIISPH is the implicit incompressible solver: a damped
	// fixed-point iteration driving predicted density to rest density.
	MethodIISPH Method = "iisph"
	// MethodWCSPH is the explicit weakly-compressible solver: pressure
	// from a stiffness equation of state, no iteration.
	MethodWCSPH Method = "wcsph"
)

// DefaultParticlePerCell is the neighborhood population the smoothing
// radius derivation targets.
const DefaultParticlePerCell = 33.8

// FluidParams holds the shared fluid material parameters.
type FluidParams struct {
	Mass            float64
	RestDensity     float64
	SmoothingRadius float64
	SoundSpeed      float64
	Viscosity       float64 // artificial-viscosity alpha
	Cohesion        float64 // surface-tension coefficient
	ParticlePerCell float64
}

// BoundaryParams holds the boundary interaction parameters.
type BoundaryParams struct {
	SmoothingRadius float64 // must not exceed the fluid smoothing radius
	Adhesion        float64
	Friction        float64
}

// SolverParams holds the pressure-solve configuration.
type SolverParams struct {
	Method          Method
	Dt              float64
	MaxDensityError float64 // convergence tolerance on mean density error
	MinIterations   int
	MaxIterations   int
	Stiffness       float64 // equation-of-state constant, wcsph only
}

// Params is the full, effectively immutable parameter set of a run.
type Params struct {
	Fluid    FluidParams
	Boundary BoundaryParams
	Solver   SolverParams
	Gravity  r3.Vec
}

// NewParams derives a parameter set from a target particle count and the
// fluid volume those particles should fill, following the usual SPH
// resolution bookkeeping: mass from rest density and per-particle
// volume, smoothing radius from the target neighborhood population, and
// sound speed from an assumed dam height and compressibility bound.
func NewParams(count int, volume float64) (Params, error) {
	if count <= 0 {
		return Params{}, fmt.Errorf("sim: particle count must be positive, got %d", count)
	}
	if volume <= 0 {
		return Params{}, fmt.Errorf("sim: fluid volume must be positive, got %g", volume)
	}

	const restDensity = 1000.0
	h := 0.5 * math.Cbrt(3.0*volume*DefaultParticlePerCell/(4.0*math.Pi*float64(count)))

	const (
		eta    = 0.01 // allowed density variation
		height = 0.1  // reference fall height for the velocity scale
	)
	cs := math.Sqrt(2.0*9.81*height) / math.Sqrt(eta)

	p := Params{
		Fluid: FluidParams{
			Mass:            restDensity * volume / float64(count),
			RestDensity:     restDensity,
			SmoothingRadius: h,
			SoundSpeed:      cs,
			Viscosity:       0.1,
			Cohesion:        0.05,
			ParticlePerCell: DefaultParticlePerCell,
		},
		Boundary: BoundaryParams{
			SmoothingRadius: h / 2.0,
			Adhesion:        0.001,
			Friction:        1.0,
		},
		Solver: SolverParams{
			Method:          MethodIISPH,
			Dt:              0.004,
			MaxDensityError: 1.0,
			MinIterations:   2,
			MaxIterations:   200,
			Stiffness:       50000.0,
		},
		Gravity: r3.Vec{Y: -9.81},
	}
	return p, nil
}

// Validate reports the first degenerate parameter, if any. A degenerate
// set would propagate NaN through the first step, so construction fails
// fast instead.
func (p Params) Validate() error {
	switch {
	case p.Fluid.Mass <= 0:
		return fmt.Errorf("sim: particle mass must be positive, got %g", p.Fluid.Mass)
	case p.Fluid.RestDensity <= 0:
		return fmt.Errorf("sim: rest density must be positive, got %g", p.Fluid.RestDensity)
	case p.Fluid.SmoothingRadius <= 0:
		return fmt.Errorf("sim: smoothing radius must be positive, got %g", p.Fluid.SmoothingRadius)
	case p.Fluid.ParticlePerCell <= 0:
		return fmt.Errorf("sim: particles per cell must be positive, got %g", p.Fluid.ParticlePerCell)
	case p.Boundary.SmoothingRadius <= 0 || p.Boundary.SmoothingRadius > p.Fluid.SmoothingRadius:
		return fmt.Errorf("sim: boundary smoothing radius %g must be in (0, %g]",
			p.Boundary.SmoothingRadius, p.Fluid.SmoothingRadius)
	case p.Solver.Dt <= 0:
		return fmt.Errorf("sim: timestep must be positive, got %g", p.Solver.Dt)
	case p.Solver.MaxDensityError <= 0:
		return fmt.Errorf("sim: density error tolerance must be positive, got %g", p.Solver.MaxDensityError)
	case p.Solver.MinIterations < 1:
		return fmt.Errorf("sim: minimum iteration count must be at least 1, got %d", p.Solver.MinIterations)
	case p.Solver.MaxIterations < p.Solver.MinIterations:
		return fmt.Errorf("sim: maximum iteration count %d below minimum %d",
			p.Solver.MaxIterations, p.Solver.MinIterations)
	case p.Solver.Method != MethodIISPH && p.Solver.Method != MethodWCSPH:
		return fmt.Errorf("sim: unknown solver method %q", p.Solver.Method)
	case p.Solver.Method == MethodWCSPH && p.Solver.Stiffness <= 0:
		return fmt.Errorf("sim: stiffness must be positive for wcsph, got %g", p.Solver.Stiffness)
	}
	return nil
}
