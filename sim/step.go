package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Step advances the simulation by one timestep: grid and neighbor
// maintenance, advection prediction, pressure solve, integration, source
// emission, then diagnostics. Returns an error if Init has not run.
func (s *System) Step() error {
	if !s.initialized {
		return fmt.Errorf("sim: Step before Init")
	}

	s.timed(PhaseGrid, s.prepareGrid)
	s.timed(PhaseAdvection, s.predictAdvection)
	s.timed(PhasePressure, func() {
		switch s.params.Solver.Method {
		case MethodWCSPH:
			s.lastSolve = s.solveStiffness()
		default:
			s.lastSolve = s.solveImplicit()
		}
	})
	s.timed(PhaseIntegrate, s.integrate)
	s.timed(PhaseSources, func() {
		s.applySources()
		s.applySinks()
	})
	s.timed(PhaseStats, s.computeStats)
	return nil
}

// predictAdvection evaluates densities and non-pressure forces, predicts
// velocities and densities, and assembles the implicit-solve
// coefficients. Stage boundaries are pool barriers: a stage reads only
// fields the previous stage finalized.
func (s *System) predictAdvection() {
	n := len(s.particles)
	s.pool.run(n, func(start, end, _ int) { s.computeRho(start, end) })
	s.pool.run(n, func(start, end, _ int) { s.computeNormal(start, end) })
	s.computeSurface()
	s.pool.run(n, func(start, end, _ int) {
		s.computeAdvectionForces(start, end)
	})
	s.pool.run(n, func(start, end, _ int) {
		s.predictVelocity(start, end)
		s.computeDii(start, end)
	})
	s.pool.run(n, func(start, end, _ int) {
		s.predictRho(start, end)
		s.computeAii(start, end)
	})
}

// integrate applies the pressure force and advances positions with
// symplectic Euler, then advances the clock.
func (s *System) integrate() {
	n := len(s.particles)
	dt := s.params.Solver.Dt
	dtOverM := dt / s.params.Fluid.Mass
	s.pool.run(n, func(start, end, _ int) { s.computePressureForce(start, end) })
	s.pool.run(n, func(start, end, _ int) {
		for i := start; i < end; i++ {
			p := &s.particles[i]
			p.Vel = r3.Add(p.VelAdv, r3.Scale(dtOverM, p.FP))
			p.Pos = r3.Add(p.Pos, r3.Scale(dt, p.Vel))
		}
	})
	s.steps++
	s.time += dt
}

// applySources lets every active source emit. New particles may lie
// outside the current grid bounds, so emission marks the bounds dirty
// and the next step refits the grid before touching neighbor lists.
func (s *System) applySources() {
	for _, src := range s.sources {
		emitted := src.Emit(s)
		if emitted > 0 {
			s.boundsDirty = true
		}
	}
}

// applySinks queries registered sinks and records how many particles
// they would claim. Sinks never remove particles; see Sink.
func (s *System) applySinks() {
	total := 0
	for _, sk := range s.sinks {
		total += sk.Absorb(s)
	}
	s.sinkLoad = total
}

// computeStats refreshes the aggregate diagnostics from current
// densities. Particles whose density has not been evaluated yet (fresh
// source emissions) are skipped.
func (s *System) computeStats() {
	mass := s.params.Fluid.Mass
	sum := 0.0
	volume := 0.0
	counted := 0
	for i := range s.particles {
		rho := s.particles[i].Rho
		if rho <= 0 {
			continue
		}
		sum += rho
		volume += mass / rho
		counted++
	}
	if counted == 0 {
		s.stats = Stats{}
		return
	}
	mean := sum / float64(counted)
	s.stats = Stats{
		MeanDensity:        mean,
		DensityFluctuation: mean - s.params.Fluid.RestDensity,
		RealVolume:         volume,
	}
}
