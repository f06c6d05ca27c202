package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// relaxation is the damping of the implicit fixed-point update. 0.5 is
// the stable choice for the Jacobi-style iteration used here.
const relaxation = 0.5

// aiiEps guards the diagonal division in the pressure update.
const aiiEps = 2.22e-16

// SolveResult reports the outcome of one pressure solve.
type SolveResult struct {
	Converged  bool
	Iterations int
	Error      float64 // mean corrected density minus rest density
}

// predictVelocity advances velocities by the advection forces only.
func (s *System) predictVelocity(start, end int) {
	dtOverM := s.params.Solver.Dt / s.params.Fluid.Mass
	for i := start; i < end; i++ {
		p := &s.particles[i]
		p.VelAdv = r3.Add(p.Vel, r3.Scale(dtOverM, p.FAdv))
	}
}

// predictRho estimates the density each particle would reach if it moved
// with its advected velocity, uncorrected by pressure.
func (s *System) predictRho(start, end int) {
	mass := s.params.Fluid.Mass
	dt := s.params.Solver.Dt
	for i := start; i < end; i++ {
		p := &s.particles[i]
		drho := 0.0
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			q := &s.particles[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, q.Pos))
			drho += mass * r3.Dot(r3.Sub(p.VelAdv, q.VelAdv), g)
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, b.Pos))
			drho += b.Psi * r3.Dot(r3.Sub(p.VelAdv, b.Vel), g)
		}
		p.RhoAdv = p.Rho + dt*drho
	}
}

// computeDii precomputes the displacement each particle would undergo
// per unit of its own pressure, split into fluid and boundary parts.
func (s *System) computeDii(start, end int) {
	mass := s.params.Fluid.Mass
	dt2 := s.params.Solver.Dt * s.params.Solver.Dt
	for i := start; i < end; i++ {
		p := &s.particles[i]
		invRho2 := 1.0 / (p.Rho * p.Rho)
		var fluid, boundary r3.Vec
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			g := s.pKernel.Gradient(r3.Sub(p.Pos, s.particles[j].Pos))
			fluid = r3.Add(fluid, r3.Scale(-dt2*mass*invRho2, g))
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, b.Pos))
			boundary = r3.Add(boundary, r3.Scale(-dt2*b.Psi*invRho2, g))
		}
		p.DiiFluid = fluid
		p.DiiBoundary = boundary
	}
}

// dij is the displacement of particle i per unit pressure of fluid
// neighbor j.
func (s *System) dij(i, j int) r3.Vec {
	pj := &s.particles[j]
	dt2 := s.params.Solver.Dt * s.params.Solver.Dt
	g := s.pKernel.Gradient(r3.Sub(s.particles[i].Pos, pj.Pos))
	return r3.Scale(-dt2*s.params.Fluid.Mass/(pj.Rho*pj.Rho), g)
}

// computeAii assembles the diagonal of the pressure system.
func (s *System) computeAii(start, end int) {
	mass := s.params.Fluid.Mass
	for i := start; i < end; i++ {
		p := &s.particles[i]
		dii := r3.Add(p.DiiFluid, p.DiiBoundary)
		aii := 0.0
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			g := s.pKernel.Gradient(r3.Sub(p.Pos, s.particles[j].Pos))
			aii += mass * r3.Dot(r3.Sub(dii, s.dij(j, i)), g)
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, b.Pos))
			aii += b.Psi * r3.Dot(dii, g)
		}
		p.Aii = aii
	}
}

// initializePressure seeds the relaxation iterate with half the previous
// step's pressure, warm-starting the solve.
func (s *System) initializePressure(start, end int) {
	for i := start; i < end; i++ {
		p := &s.particles[i]
		p.PL = 0.5 * p.P
	}
}

// computeSumDijPj accumulates the pressure-weighted neighbor
// displacements for the current iterate.
func (s *System) computeSumDijPj(start, end int) {
	mass := s.params.Fluid.Mass
	dt2 := s.params.Solver.Dt * s.params.Solver.Dt
	for i := start; i < end; i++ {
		p := &s.particles[i]
		var sum r3.Vec
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			q := &s.particles[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, q.Pos))
			sum = r3.Add(sum, r3.Scale(-dt2*mass/(q.Rho*q.Rho)*q.PLPrev, g))
		}
		p.SumDij = sum
	}
}

// computePressure performs one damped Jacobi update of the pressure
// iterate and records the corrected density the iterate implies.
// Neighbor terms read PLPrev, the iterate fixed at the top of the
// sweep, so workers never observe a half-updated neighbor.
func (s *System) computePressure(start, end int) {
	mass := s.params.Fluid.Mass
	rho0 := s.params.Fluid.RestDensity
	for i := start; i < end; i++ {
		p := &s.particles[i]
		fsum := 0.0
		bsum := 0.0
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			q := &s.particles[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, q.Pos))
			aux := r3.Sub(p.SumDij,
				r3.Add(r3.Scale(q.PLPrev, r3.Add(q.DiiFluid, q.DiiBoundary)),
					r3.Sub(q.SumDij, r3.Scale(p.PLPrev, s.dij(j, i)))))
			fsum += mass * r3.Dot(aux, g)
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, b.Pos))
			bsum += b.Psi * r3.Dot(p.SumDij, g)
		}

		prev := p.PLPrev
		p.RhoCorr = p.RhoAdv + fsum + bsum
		if math.Abs(p.Aii) > aiiEps {
			p.PL = (1.0-relaxation)*prev + relaxation/p.Aii*(rho0-p.RhoCorr)
		} else {
			p.PL = 0.0
		}
		p.P = math.Max(p.PL, 0.0)
		p.PL = p.P
		p.RhoCorr += p.Aii * prev
	}
}

// solveImplicit runs the IISPH relaxation until the mean corrected
// density is within tolerance of rest density, bounded by the configured
// iteration range.
func (s *System) solveImplicit() SolveResult {
	n := len(s.particles)
	sp := s.params.Solver
	s.pool.run(n, func(start, end, _ int) { s.initializePressure(start, end) })

	iter := 0
	errVal := math.Inf(1)
	for iter < sp.MinIterations || (errVal > sp.MaxDensityError && iter < sp.MaxIterations) {
		s.pool.run(n, func(start, end, _ int) {
			for i := start; i < end; i++ {
				s.particles[i].PLPrev = s.particles[i].PL
			}
		})
		s.pool.run(n, func(start, end, _ int) { s.computeSumDijPj(start, end) })
		s.pool.run(n, func(start, end, _ int) { s.computePressure(start, end) })
		errVal = s.meanCorrectedDensity() - s.params.Fluid.RestDensity
		iter++
	}
	return SolveResult{
		Converged:  errVal <= sp.MaxDensityError,
		Iterations: iter,
		Error:      errVal,
	}
}

// solveStiffness computes explicit weakly-compressible pressures from
// the equation of state. No iteration, never reported unconverged.
func (s *System) solveStiffness() SolveResult {
	k := s.params.Solver.Stiffness
	rho0 := s.params.Fluid.RestDensity
	s.pool.run(len(s.particles), func(start, end, _ int) {
		for i := start; i < end; i++ {
			p := &s.particles[i]
			p.P = math.Max(0.0, k*(p.Rho-rho0))
			p.RhoCorr = p.Rho
		}
	})
	return SolveResult{Converged: true, Iterations: 1, Error: s.meanCorrectedDensity() - rho0}
}

func (s *System) meanCorrectedDensity() float64 {
	sum := 0.0
	for i := range s.particles {
		sum += s.particles[i].RhoCorr
	}
	return sum / float64(len(s.particles))
}

// computePressureForce assembles the symmetric pressure force from the
// solved pressures.
func (s *System) computePressureForce(start, end int) {
	mass := s.params.Fluid.Mass
	for i := start; i < end; i++ {
		p := &s.particles[i]
		pOverRho2 := p.P / (p.Rho * p.Rho)
		var f r3.Vec
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			q := &s.particles[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, q.Pos))
			f = r3.Add(f, r3.Scale(-mass*mass*(pOverRho2+q.P/(q.Rho*q.Rho)), g))
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			g := s.pKernel.Gradient(r3.Sub(p.Pos, b.Pos))
			f = r3.Add(f, r3.Scale(-mass*b.Psi*pOverRho2, g))
		}
		p.FP = f
	}
}
