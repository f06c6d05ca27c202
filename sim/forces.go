package sim

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// viscosityEps regularizes the denominator of the artificial-viscosity
// and friction terms against vanishing separations.
const viscosityEps = 0.01

// surfaceNormalThreshold is the squared-normal magnitude above which a
// particle counts as free surface.
const surfaceNormalThreshold = 0.05

// computeRho evaluates the SPH density of particles [start, end) from
// fluid and boundary neighbors. The self term is part of the fluid sum.
func (s *System) computeRho(start, end int) {
	mass := s.params.Fluid.Mass
	for i := start; i < end; i++ {
		p := &s.particles[i]
		rho := 0.0
		for _, j := range p.FluidNeighbors {
			rho += mass * s.pKernel.Value(r3.Sub(p.Pos, s.particles[j].Pos))
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			rho += b.Psi * s.pKernel.Value(r3.Sub(p.Pos, b.Pos))
		}
		p.Rho = rho
	}
}

// computeNormal evaluates the smoothed color-field gradient used by the
// curvature term of the surface-tension force.
func (s *System) computeNormal(start, end int) {
	mass := s.params.Fluid.Mass
	h := s.params.Fluid.SmoothingRadius
	for i := start; i < end; i++ {
		p := &s.particles[i]
		var n r3.Vec
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			q := &s.particles[j]
			if q.Rho <= 0 {
				continue
			}
			g := s.pKernel.Gradient(r3.Sub(p.Pos, q.Pos))
			n = r3.Add(n, r3.Scale(mass/q.Rho, g))
		}
		p.Normal = r3.Scale(h, n)
	}
}

// computeSurface classifies particles as free surface, either by normal
// magnitude or by a deficient neighborhood, then dilates the set by one
// ring so surface tension fades in rather than switching on a knife
// edge. The seed set is collected before any flag is dilated; marking
// neighbors in place while scanning would cascade along index order and
// flood whole connected regions instead of one ring. Runs sequentially:
// the dilation writes neighbor flags.
func (s *System) computeSurface() {
	deficiency := 0.5 * s.params.Fluid.ParticlePerCell
	s.surfaceSeeds = s.surfaceSeeds[:0]
	for i := range s.particles {
		p := &s.particles[i]
		p.Surface = r3.Norm2(p.Normal) > surfaceNormalThreshold ||
			float64(len(p.FluidNeighbors)) < deficiency
		if p.Surface {
			s.surfaceSeeds = append(s.surfaceSeeds, i)
		}
	}
	for _, i := range s.surfaceSeeds {
		for _, j := range s.particles[i].FluidNeighbors {
			s.particles[j].Surface = true
		}
	}
}

// computeAdvectionForces accumulates all non-pressure forces: gravity,
// artificial viscosity, surface tension, boundary friction, adhesion,
// and the direct boundary repulsion.
func (s *System) computeAdvectionForces(start, end int) {
	mass := s.params.Fluid.Mass
	for i := start; i < end; i++ {
		p := &s.particles[i]
		p.FAdv = r3.Scale(mass, s.params.Gravity)
		for _, j := range p.FluidNeighbors {
			if j == i {
				continue
			}
			s.addViscosityForce(p, &s.particles[j])
			s.addSurfaceTensionForce(p, &s.particles[j])
		}
		for _, j := range p.BoundaryNeighbors {
			b := &s.boundaries[j]
			s.addBoundaryForce(p, b)
			s.addBoundaryFrictionForce(p, b)
			s.addBoundaryAdhesionForce(p, b)
		}
	}
}

// addViscosityForce applies Monaghan artificial viscosity between an
// approaching fluid pair.
func (s *System) addViscosityForce(p, q *Particle) {
	r := r3.Sub(p.Pos, q.Pos)
	v := r3.Sub(p.Vel, q.Vel)
	dot := r3.Dot(v, r)
	if dot >= 0 {
		return
	}
	f := s.params.Fluid
	kij := 2.0 * f.RestDensity / (p.Rho + q.Rho)
	h := f.SmoothingRadius
	nu := 2.0 * f.Viscosity * h * f.SoundSpeed / (p.Rho + q.Rho)
	pij := -kij * nu * dot / (r3.Norm2(r) + viscosityEps*h*h)
	g := s.pKernel.Gradient(r)
	p.FAdv = r3.Add(p.FAdv, r3.Scale(-kij*f.Mass*f.Mass*pij, g))
}

// addSurfaceTensionForce applies the cohesion and curvature terms of the
// Akinci surface-tension model. Only pairs with at least one surface
// particle contribute.
func (s *System) addSurfaceTensionForce(p, q *Particle) {
	if !p.Surface && !q.Surface {
		return
	}
	r := r3.Sub(p.Pos, q.Pos)
	l := r3.Norm(r)
	if l < sepEps {
		return
	}
	f := s.params.Fluid
	kij := 2.0 * f.RestDensity / (p.Rho + q.Rho)
	cohesion := r3.Scale(-f.Cohesion*f.Mass*f.Mass*s.aKernel.Cohesion(l)/l, r)
	curvature := r3.Scale(-f.Cohesion*f.Mass, r3.Sub(p.Normal, q.Normal))
	p.FAdv = r3.Add(p.FAdv, r3.Scale(kij, r3.Add(cohesion, curvature)))
}

// addBoundaryForce applies the direct wall repulsion along the
// separation direction.
func (s *System) addBoundaryForce(p *Particle, b *Boundary) {
	r := r3.Sub(p.Pos, b.Pos)
	l := r3.Norm(r)
	if l < sepEps {
		return
	}
	mass := s.params.Fluid.Mass
	gamma := s.bKernel.Gamma(l)
	p.FAdv = r3.Add(p.FAdv, r3.Scale(-mass*b.Psi*gamma/(mass+b.Psi)/l, r))
}

// addBoundaryFrictionForce applies a viscous drag against the boundary,
// using the velocity relative to the boundary sample so moving
// boundaries drag fluid along.
func (s *System) addBoundaryFrictionForce(p *Particle, b *Boundary) {
	r := r3.Sub(p.Pos, b.Pos)
	v := r3.Sub(p.Vel, b.Vel)
	dot := r3.Dot(v, r)
	if dot >= 0 {
		return
	}
	f := s.params.Fluid
	h := f.SmoothingRadius
	nu := s.params.Boundary.Friction * h * f.SoundSpeed / (2.0 * p.Rho)
	pij := -nu * dot / (r3.Norm2(r) + viscosityEps*h*h)
	g := s.pKernel.Gradient(r)
	p.FAdv = r3.Add(p.FAdv, r3.Scale(-f.Mass*b.Psi*pij, g))
}

// addBoundaryAdhesionForce pulls near-boundary fluid onto the wall.
func (s *System) addBoundaryAdhesionForce(p *Particle, b *Boundary) {
	r := r3.Sub(p.Pos, b.Pos)
	l := r3.Norm(r)
	if l < sepEps {
		return
	}
	beta := s.params.Boundary.Adhesion
	p.FAdv = r3.Add(p.FAdv, r3.Scale(-beta*b.Psi*s.aKernel.Adhesion(l)/l, r))
}
