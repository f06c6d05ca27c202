// Package grid provides the uniform spatial partition used for neighbor
// candidate generation. Cells are cubes of a fixed spacing; a position
// maps to a flat cell id and neighbor queries return the 3x3x3 block of
// cells around a position.
package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Outside is the sentinel cell id for positions not covered by the grid.
const Outside = -1

// Grid partitions an axis-aligned region into uniform cubic cells.
type Grid struct {
	origin  r3.Vec
	spacing float64
	nx      int
	ny      int
	nz      int
}

// New builds a grid covering extent from origin with the given cell
// spacing. The neighbor-query contract requires spacing to be at least
// the interaction radius used by callers.
func New(origin, extent r3.Vec, spacing float64) Grid {
	return Grid{
		origin:  origin,
		spacing: spacing,
		nx:      int(extent.X/spacing) + 1,
		ny:      int(extent.Y/spacing) + 1,
		nz:      int(extent.Z/spacing) + 1,
	}
}

// Size returns the total cell count.
func (g Grid) Size() int { return g.nx * g.ny * g.nz }

// Spacing returns the cell edge length.
func (g Grid) Spacing() float64 { return g.spacing }

// Origin returns the minimum corner of the covered region.
func (g Grid) Origin() r3.Vec { return g.origin }

// Dims returns the per-axis cell counts.
func (g Grid) Dims() (nx, ny, nz int) { return g.nx, g.ny, g.nz }

// WorldToGrid returns the per-axis cell coordinates of a world position.
// Coordinates may lie outside [0, n) if the position is outside the grid;
// positions below the origin map to negative coordinates, not cell zero.
func (g Grid) WorldToGrid(p r3.Vec) (i, j, k int) {
	inv := 1.0 / g.spacing
	return int(math.Floor((p.X - g.origin.X) * inv)),
		int(math.Floor((p.Y - g.origin.Y) * inv)),
		int(math.Floor((p.Z - g.origin.Z) * inv))
}

// GridToWorld returns the minimum corner of cell id.
func (g Grid) GridToWorld(id int) r3.Vec {
	i := id % g.nx
	j := (id / g.nx) % g.ny
	k := id / (g.nx * g.ny)
	return r3.Vec{
		X: g.origin.X + float64(i)*g.spacing,
		Y: g.origin.Y + float64(j)*g.spacing,
		Z: g.origin.Z + float64(k)*g.spacing,
	}
}

// CellID maps a world position to a flat cell id, or Outside.
func (g Grid) CellID(p r3.Vec) int {
	i, j, k := g.WorldToGrid(p)
	if i < 0 || j < 0 || k < 0 || i >= g.nx || j >= g.ny || k >= g.nz {
		return Outside
	}
	return g.cellIndex(i, j, k)
}

// Contains reports whether id is a valid cell id.
func (g Grid) Contains(id int) bool { return id >= 0 && id < g.Size() }

// NeighborCellsInto appends the ids of the 27-cell block centered on the
// cell containing p to dst and returns the updated slice. Cells outside
// the grid are skipped. All true neighbors land in this block only when
// the query radius does not exceed the cell spacing; that invariant is
// the caller's to uphold. Reuse dst across calls to avoid allocations.
func (g Grid) NeighborCellsInto(dst []int, p r3.Vec) []int {
	ci, cj, ck := g.WorldToGrid(p)
	for dk := -1; dk <= 1; dk++ {
		k := ck + dk
		if k < 0 || k >= g.nz {
			continue
		}
		for dj := -1; dj <= 1; dj++ {
			j := cj + dj
			if j < 0 || j >= g.ny {
				continue
			}
			for di := -1; di <= 1; di++ {
				i := ci + di
				if i < 0 || i >= g.nx {
					continue
				}
				dst = append(dst, g.cellIndex(i, j, k))
			}
		}
	}
	return dst
}

func (g Grid) cellIndex(i, j, k int) int {
	return i + j*g.nx + k*g.nx*g.ny
}

// Info returns a one-line description for diagnostics.
func (g Grid) Info() string {
	return fmt.Sprintf("grid origin=(%.3f,%.3f,%.3f) cells=%dx%dx%d spacing=%.4f",
		g.origin.X, g.origin.Y, g.origin.Z, g.nx, g.ny, g.nz, g.spacing)
}

// MortonIndex interleaves the bits of the cell coordinates into a Z-order
// curve index. Sorting particles by this index keeps spatially close
// particles close in memory. Coordinates are clamped to 21 bits.
func MortonIndex(i, j, k int) uint64 {
	return part1By2(uint64(i)) | part1By2(uint64(j))<<1 | part1By2(uint64(k))<<2
}

// part1By2 spreads the low 21 bits of x two bits apart.
func part1By2(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}
