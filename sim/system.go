// Package sim implements the incompressible SPH fluid solver: particle
// and boundary stores, grid-based neighbor search, density and force
// kernels, an implicit (IISPH) or weakly-compressible pressure solve,
// and the per-timestep pipeline that sequences them.
package sim

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okulo/brine/grid"
	"github.com/okulo/brine/kernel"
	"github.com/okulo/brine/sample"
)

// sepEps floors separation distances before dividing, so coincident
// samples contribute nothing instead of a non-finite force.
const sepEps = 1e-12

// Pipeline phase names reported through the phase hook.
const (
	PhaseGrid      = "grid"
	PhaseAdvection = "advection"
	PhasePressure  = "pressure_solve"
	PhaseIntegrate = "integration"
	PhaseSources   = "sources"
	PhaseStats     = "stats"
)

// Stats holds the aggregate diagnostics recomputed at the end of each
// step.
type Stats struct {
	MeanDensity        float64
	DensityFluctuation float64 // mean density minus rest density
	RealVolume         float64 // sum of mass/rho over all particles
}

// FrameSnapshot is a stable copy of the exported per-particle state,
// safe to serialize while the next step runs elsewhere.
type FrameSnapshot struct {
	Time       float64
	Positions  []r3.Vec
	Velocities []r3.Vec
	Densities  []float64
	Masses     []float64
}

// System holds all solver state for one simulation: the particle and
// boundary stores, the spatial grid, the parameter set, and the
// time/step counters. Every stage operates on this one value; there are
// no package-level globals.
type System struct {
	params Params

	pKernel kernel.Monaghan
	aKernel kernel.Akinci
	bKernel kernel.Boundary

	particles  []Particle
	boundaries []Boundary
	sources    []*Source
	sinks      []*Sink
	sinkLoad   int

	grid          grid.Grid
	fluidCells    [][]int
	boundaryCells [][]int
	boundsDirty   bool
	initialized   bool

	time  float64
	steps int

	stats     Stats
	lastSolve SolveResult

	pool         *pool
	cellBuf      [][]int // per-worker neighbor-cell scratch
	surfaceSeeds []int   // scratch for the surface dilation pass
	phaseHook    func(phase string, d time.Duration)
}

// New builds a system from a validated parameter set. Particles,
// boundaries, and sources are added afterwards; Init must run before the
// first Step.
func New(params Params) (*System, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	p := newPool(0)
	cellBuf := make([][]int, p.numWorkers)
	for i := range cellBuf {
		cellBuf[i] = make([]int, 0, 27)
	}

	return &System{
		params:  params,
		pKernel: kernel.NewMonaghan(params.Fluid.SmoothingRadius),
		aKernel: kernel.NewAkinci(2.0 * params.Fluid.SmoothingRadius),
		bKernel: kernel.NewBoundary(params.Boundary.SmoothingRadius, params.Fluid.SoundSpeed),
		pool:    p,
		cellBuf: cellBuf,
	}, nil
}

// Close stops the worker pool. The system must not be stepped after.
func (s *System) Close() {
	s.pool.stop()
}

// SetPhaseHook installs a callback receiving the wall-clock duration of
// each pipeline phase. Pass nil to disable.
func (s *System) SetPhaseHook(hook func(phase string, d time.Duration)) {
	s.phaseHook = hook
}

// AddParticle appends one fluid particle.
func (s *System) AddParticle(pos, vel r3.Vec) {
	s.particles = append(s.particles, Particle{Pos: pos, Vel: vel})
}

// AddBoundary appends one boundary sample.
func (s *System) AddBoundary(pos, vel r3.Vec) {
	s.boundaries = append(s.boundaries, Boundary{Pos: pos, Vel: vel})
}

// AddParticleBox fills an axis-aligned box with fluid particles on a
// lattice at the smoothing radius.
func (s *System) AddParticleBox(offset, size r3.Vec) {
	for _, p := range sample.Box(offset, size, s.params.Fluid.SmoothingRadius) {
		s.AddParticle(p, r3.Vec{})
	}
}

// AddParticleSphere fills a sphere with fluid particles.
func (s *System) AddParticleSphere(center r3.Vec, radius float64) {
	for _, p := range sample.SphereVolume(center, radius, s.params.Fluid.SmoothingRadius) {
		s.AddParticle(p, r3.Vec{})
	}
}

// AddBoundaryBox samples the six faces of a box as a sealed container.
func (s *System) AddBoundaryBox(offset, size r3.Vec) {
	for _, p := range sample.BoxShell(offset, size, s.params.Fluid.SmoothingRadius) {
		s.AddBoundary(p, r3.Vec{})
	}
}

// AddBoundarySphere samples a sphere surface as a boundary.
func (s *System) AddBoundarySphere(center r3.Vec, radius float64) {
	for _, p := range sample.SphereSurface(center, radius, s.params.Fluid.SmoothingRadius) {
		s.AddBoundary(p, r3.Vec{})
	}
}

// AddBoundaryHemiSphere samples an upward hemisphere surface.
func (s *System) AddBoundaryHemiSphere(center r3.Vec, radius float64) {
	for _, p := range sample.HemiSphereSurface(center, radius, s.params.Fluid.SmoothingRadius) {
		s.AddBoundary(p, r3.Vec{})
	}
}

// AddBoundaryDisk samples a flat disk boundary.
func (s *System) AddBoundaryDisk(center r3.Vec, radius float64) {
	for _, p := range sample.Disk(center, radius, s.params.Fluid.SmoothingRadius) {
		s.AddBoundary(p, r3.Vec{})
	}
}

// AddBoundaryCylinder samples a capped cylinder boundary.
func (s *System) AddBoundaryCylinder(center r3.Vec, radius, height float64) {
	for _, p := range sample.Cylinder(center, radius, height, s.params.Fluid.SmoothingRadius) {
		s.AddBoundary(p, r3.Vec{})
	}
}

// AddBoundaryTriangle samples one triangle (vertices, edges, interior)
// as boundary particles at half the smoothing radius, the spacing the
// boundary-volume correction assumes for surface sampling. Degenerate
// triangles are rejected.
func (s *System) AddBoundaryTriangle(p1, p2, p3 r3.Vec) error {
	points, ok := sample.TriangleShell(p1, p2, p3, s.params.Fluid.SmoothingRadius/2.0)
	if !ok {
		return fmt.Errorf("sim: degenerate boundary triangle (%v, %v, %v)", p1, p2, p3)
	}
	for _, p := range points {
		s.AddBoundary(p, r3.Vec{})
	}
	return nil
}

// AddSource registers a particle emitter. Sources must be registered
// before Init.
func (s *System) AddSource(src *Source) {
	s.sources = append(s.sources, src)
}

// AddSink registers a drain region. Sinks are diagnostic only; no
// particle is ever removed.
func (s *System) AddSink(sk *Sink) {
	s.sinks = append(s.sinks, sk)
}

// SinkLoad returns how many particles the registered sinks would have
// claimed on the last step.
func (s *System) SinkLoad() int { return s.sinkLoad }

// Init builds the spatial grid, precomputes boundary pseudo-masses, and
// runs the first neighbor search. It must be called once, after scene
// setup and before stepping.
func (s *System) Init() error {
	if s.initialized {
		return fmt.Errorf("sim: Init called twice")
	}
	if len(s.particles) == 0 {
		return fmt.Errorf("sim: no fluid particles; add particles before Init")
	}

	s.rebuildBounds()
	s.mortonSort()
	s.refreshFluidCells()
	s.computeBoundaryVolume()
	s.searchAllNeighbors()

	// Everything starts as surface so the first advection pass applies
	// surface tension everywhere; the flags are recomputed per step.
	for i := range s.particles {
		s.particles[i].Surface = true
	}

	s.initialized = true
	return nil
}

// Time returns the accumulated simulated time.
func (s *System) Time() float64 { return s.time }

// Steps returns the number of completed steps.
func (s *System) Steps() int { return s.steps }

// ParticleCount returns the current fluid particle count.
func (s *System) ParticleCount() int { return len(s.particles) }

// BoundaryCount returns the boundary sample count, fixed after setup.
func (s *System) BoundaryCount() int { return len(s.boundaries) }

// Params returns the parameter set the system was built with.
func (s *System) Params() Params { return s.params }

// Stats returns the aggregate diagnostics of the last completed step.
func (s *System) Stats() Stats { return s.stats }

// LastSolve returns the pressure-solve outcome of the last step.
func (s *System) LastSolve() SolveResult { return s.lastSolve }

// Pressures returns a copy of the per-particle pressure field.
func (s *System) Pressures() []float64 {
	out := make([]float64, len(s.particles))
	for i := range s.particles {
		out[i] = s.particles[i].P
	}
	return out
}

// Speeds returns the per-particle velocity magnitudes.
func (s *System) Speeds() []float64 {
	out := make([]float64, len(s.particles))
	for i := range s.particles {
		out[i] = r3.Norm(s.particles[i].Vel)
	}
	return out
}

// Snapshot copies the exported per-particle state of the current step.
func (s *System) Snapshot() FrameSnapshot {
	n := len(s.particles)
	snap := FrameSnapshot{
		Time:       s.time,
		Positions:  make([]r3.Vec, n),
		Velocities: make([]r3.Vec, n),
		Densities:  make([]float64, n),
		Masses:     make([]float64, n),
	}
	for i := range s.particles {
		p := &s.particles[i]
		snap.Positions[i] = p.Pos
		snap.Velocities[i] = p.Vel
		snap.Densities[i] = p.Rho
		snap.Masses[i] = s.params.Fluid.Mass
	}
	return snap
}

// timed runs one pipeline phase, reporting its duration to the phase
// hook when one is installed.
func (s *System) timed(phase string, fn func()) {
	if s.phaseHook == nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	s.phaseHook(phase, time.Since(start))
}
