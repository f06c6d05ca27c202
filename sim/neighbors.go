package sim

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okulo/brine/grid"
)

// gridSortInterval is the step period for rebuilding the grid bounds and
// re-sorting particles along the Z-order curve. Between rebuilds the grid
// keeps its padded bounds and only the fluid buckets are refreshed.
const gridSortInterval = 100

// prepareGrid maintains the spatial partition for the current step:
// periodically (or after sources emitted) it refits the grid to the
// scene and re-sorts particles for locality, then it rebuckets the fluid
// and rebuilds every particle's neighbor lists.
func (s *System) prepareGrid() {
	if s.steps%gridSortInterval == 0 || s.boundsDirty {
		s.rebuildBounds()
		s.mortonSort()
		s.boundsDirty = false
	}
	s.refreshFluidCells()
	s.searchAllNeighbors()
}

// rebuildBounds refits the grid to the bounding box of all particles and
// boundaries, padded by one interaction radius on each side, and
// rebuckets the boundary samples. Cell spacing equals the interaction
// radius so a 27-cell block covers every possible neighbor.
func (s *System) rebuildBounds() {
	support := s.pKernel.Support()

	min := s.particles[0].Pos
	max := min
	for i := range s.particles {
		min, max = expand(min, max, s.particles[i].Pos)
	}
	for i := range s.boundaries {
		min, max = expand(min, max, s.boundaries[i].Pos)
	}
	pad := r3.Vec{X: support, Y: support, Z: support}
	min = r3.Sub(min, pad)
	max = r3.Add(max, pad)

	s.grid = grid.New(min, r3.Sub(max, min), support)

	n := s.grid.Size()
	s.fluidCells = resizeCells(s.fluidCells, n)
	s.boundaryCells = resizeCells(s.boundaryCells, n)
	for i := range s.boundaryCells {
		s.boundaryCells[i] = s.boundaryCells[i][:0]
	}
	for i := range s.boundaries {
		if id := s.grid.CellID(s.boundaries[i].Pos); id != grid.Outside {
			s.boundaryCells[id] = append(s.boundaryCells[id], i)
		}
	}
}

func expand(min, max, p r3.Vec) (r3.Vec, r3.Vec) {
	if p.X < min.X {
		min.X = p.X
	}
	if p.Y < min.Y {
		min.Y = p.Y
	}
	if p.Z < min.Z {
		min.Z = p.Z
	}
	if p.X > max.X {
		max.X = p.X
	}
	if p.Y > max.Y {
		max.Y = p.Y
	}
	if p.Z > max.Z {
		max.Z = p.Z
	}
	return min, max
}

func resizeCells(cells [][]int, n int) [][]int {
	if cap(cells) < n {
		return make([][]int, n)
	}
	cells = cells[:n]
	return cells
}

// mortonSort reorders the particle store along the Z-order curve of the
// current grid. Neighbor lists hold indices into the old order, so the
// caller must rebuild them afterwards.
func (s *System) mortonSort() {
	type zp struct {
		idx int
		z   uint64
	}
	keys := make([]zp, len(s.particles))
	for i := range s.particles {
		gi, gj, gk := s.grid.WorldToGrid(s.particles[i].Pos)
		keys[i] = zp{idx: i, z: grid.MortonIndex(gi, gj, gk)}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].z < keys[b].z })

	sorted := make([]Particle, len(s.particles))
	for i, k := range keys {
		sorted[i] = s.particles[k.idx]
	}
	s.particles = sorted
}

// refreshFluidCells rebuckets the fluid particles into the current grid.
func (s *System) refreshFluidCells() {
	for i := range s.fluidCells {
		s.fluidCells[i] = s.fluidCells[i][:0]
	}
	for i := range s.particles {
		if id := s.grid.CellID(s.particles[i].Pos); id != grid.Outside {
			s.fluidCells[id] = append(s.fluidCells[id], i)
		}
	}
}

// searchAllNeighbors rebuilds both neighbor lists of every particle from
// the grid buckets. Lists include the particle itself; pairwise loops
// skip the self index where the term requires distinct pairs.
func (s *System) searchAllNeighbors() {
	radius := s.pKernel.Support()
	r2 := radius * radius
	s.pool.run(len(s.particles), func(start, end, worker int) {
		for i := start; i < end; i++ {
			p := &s.particles[i]
			p.FluidNeighbors = p.FluidNeighbors[:0]
			p.BoundaryNeighbors = p.BoundaryNeighbors[:0]

			cells := s.grid.NeighborCellsInto(s.cellBuf[worker][:0], p.Pos)
			s.cellBuf[worker] = cells
			for _, c := range cells {
				for _, j := range s.fluidCells[c] {
					d := r3.Sub(p.Pos, s.particles[j].Pos)
					if r3.Norm2(d) < r2 {
						p.FluidNeighbors = append(p.FluidNeighbors, j)
					}
				}
				for _, j := range s.boundaryCells[c] {
					d := r3.Sub(p.Pos, s.boundaries[j].Pos)
					if r3.Norm2(d) < r2 {
						p.BoundaryNeighbors = append(p.BoundaryNeighbors, j)
					}
				}
			}
		}
	})
}

// computeBoundaryVolume assigns each boundary sample its pseudo-mass
// psi = rho0 / sum W over nearby boundary samples, so flat and cornered
// boundary regions contribute consistent density regardless of sampling
// layout. Boundaries are static relative to each other, so this runs
// once at Init.
func (s *System) computeBoundaryVolume() {
	r2 := s.pKernel.Support() * s.pKernel.Support()
	s.pool.run(len(s.boundaries), func(start, end, worker int) {
		for i := start; i < end; i++ {
			b := &s.boundaries[i]
			sum := 0.0
			cells := s.grid.NeighborCellsInto(s.cellBuf[worker][:0], b.Pos)
			s.cellBuf[worker] = cells
			for _, c := range cells {
				for _, j := range s.boundaryCells[c] {
					d := r3.Sub(b.Pos, s.boundaries[j].Pos)
					if r3.Norm2(d) < r2 {
						sum += s.pKernel.Value(d)
					}
				}
			}
			if sum > 0 {
				b.Psi = s.params.Fluid.RestDensity / sum
			}
		}
	})
}
