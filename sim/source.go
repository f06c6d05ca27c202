package sim

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/okulo/brine/sample"
)

// Source emits fluid particles through a disk-shaped stencil at a fixed
// cadence, within an active time window. The emission velocity must
// clear the stencil before the next emission or particles stack on top
// of each other; NewSource enforces that.
type Source struct {
	Center   r3.Vec
	Radius   float64
	Spacing  float64
	Velocity r3.Vec // initial velocity of emitted particles
	Start    float64
	End      float64
	Delay    float64 // seconds between emissions

	stencil []r3.Vec
	next    float64
}

// NewSource builds a source. The emission delay is derived so that
// particles travel one spacing along the velocity direction between
// emissions, keeping consecutive layers separated.
func NewSource(center r3.Vec, radius, spacing float64, velocity r3.Vec, start, end float64) (*Source, error) {
	if radius <= 0 || spacing <= 0 {
		return nil, fmt.Errorf("sim: source radius and spacing must be positive, got %g, %g", radius, spacing)
	}
	if end < start {
		return nil, fmt.Errorf("sim: source window [%g, %g] is empty", start, end)
	}
	speed := r3.Norm(velocity)
	if speed <= 0 {
		return nil, fmt.Errorf("sim: source emission velocity must be nonzero")
	}
	return &Source{
		Center:   center,
		Radius:   radius,
		Spacing:  spacing,
		Velocity: velocity,
		Start:    start,
		End:      end,
		Delay:    spacing / speed,
		stencil:  sample.Disk(center, radius, spacing),
		next:     start,
	}, nil
}

// Emit appends one stencil of particles if the source is active and due,
// and returns the number of particles added.
func (src *Source) Emit(s *System) int {
	t := s.Time()
	if t < src.Start || t > src.End || t < src.next {
		return 0
	}
	for _, p := range src.stencil {
		s.AddParticle(p, src.Velocity)
	}
	src.next = t + src.Delay
	return len(src.stencil)
}

// Sink marks a spherical region as a drain. Particle removal is not
// implemented: neighbor references are plain indices into a store that
// only grows, and deletion would dangle them. Absorb reports how many
// particles a removal pass would claim, so scenes can be tuned before
// deletion support exists.
type Sink struct {
	Center r3.Vec
	Radius float64
	Start  float64
	End    float64
}

// Absorb counts the particles inside the sink region during its active
// window. No particle is removed.
func (sk *Sink) Absorb(s *System) int {
	t := s.Time()
	if t < sk.Start || t > sk.End {
		return 0
	}
	r2 := sk.Radius * sk.Radius
	count := 0
	for i := range s.particles {
		if r3.Norm2(r3.Sub(s.particles[i].Pos, sk.Center)) < r2 {
			count++
		}
	}
	return count
}
