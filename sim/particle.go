package sim

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is one fluid sample. Kinematic state persists across steps;
// the solver scratch fields (predicted densities, pressure-solve
// coefficients) and both neighbor lists are rebuilt every step and must
// never be read across a grid rebuild.
type Particle struct {
	Pos    r3.Vec
	Vel    r3.Vec
	VelAdv r3.Vec // velocity after advection forces, before pressure

	Rho     float64
	RhoAdv  float64 // density predicted from advected velocities
	RhoCorr float64 // density after the current pressure estimate

	P      float64
	PL     float64 // relaxation iterate of the implicit solve
	PLPrev float64 // previous iterate, read for neighbor terms

	FAdv r3.Vec
	FP   r3.Vec

	Normal  r3.Vec
	Surface bool

	DiiFluid    r3.Vec
	DiiBoundary r3.Vec
	SumDij      r3.Vec
	Aii         float64

	// Neighbor indices into the particle and boundary stores, valid
	// only for the step whose grid pass produced them.
	FluidNeighbors    []int
	BoundaryNeighbors []int
}

// Boundary is one static or moving solid sample. Psi is the pseudo-mass
// from the boundary-volume correction, computed once at Init.
type Boundary struct {
	Pos r3.Vec
	Vel r3.Vec
	Psi float64
}
