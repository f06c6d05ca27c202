// Package sample generates particle positions from geometric primitives.
// Samplers return a finite, deterministic-order sequence of points; the
// solver turns each point into one fluid or boundary particle.
package sample

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box fills an axis-aligned box with a cubic lattice of points at the
// given spacing, starting at offset.
func Box(offset, size r3.Vec, spacing float64) []r3.Vec {
	nx := int(size.X / spacing)
	ny := int(size.Y / spacing)
	nz := int(size.Z / spacing)

	points := make([]r3.Vec, 0, nx*ny*nz)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				points = append(points, r3.Vec{
					X: offset.X + float64(i)*spacing,
					Y: offset.Y + float64(j)*spacing,
					Z: offset.Z + float64(k)*spacing,
				})
			}
		}
	}
	return points
}

// BoxShell samples the six faces of an axis-aligned box at the given
// spacing, producing a closed container shell.
func BoxShell(offset, size r3.Vec, spacing float64) []r3.Vec {
	nx := int(size.X / spacing)
	ny := int(size.Y / spacing)
	nz := int(size.Z / spacing)

	var points []r3.Vec

	// ZX planes, bottom and top.
	for i := 0; i <= nx; i++ {
		for k := 0; k <= nz; k++ {
			x := offset.X + float64(i)*spacing
			z := offset.Z + float64(k)*spacing
			points = append(points,
				r3.Vec{X: x, Y: offset.Y, Z: z},
				r3.Vec{X: x, Y: offset.Y + size.Y, Z: z})
		}
	}

	// XY planes, back and front. Interior rows only, edges belong to
	// the ZX planes.
	for i := 0; i <= nx; i++ {
		for j := 1; j < ny; j++ {
			x := offset.X + float64(i)*spacing
			y := offset.Y + float64(j)*spacing
			points = append(points,
				r3.Vec{X: x, Y: y, Z: offset.Z},
				r3.Vec{X: x, Y: y, Z: offset.Z + size.Z})
		}
	}

	// YZ planes, left and right.
	for j := 1; j < ny; j++ {
		for k := 1; k < nz; k++ {
			y := offset.Y + float64(j)*spacing
			z := offset.Z + float64(k)*spacing
			points = append(points,
				r3.Vec{X: offset.X, Y: y, Z: z},
				r3.Vec{X: offset.X + size.X, Y: y, Z: z})
		}
	}

	return points
}

// SphereVolume fills a sphere with lattice points at the given spacing.
func SphereVolume(center r3.Vec, radius, spacing float64) []r3.Vec {
	var points []r3.Vec
	n := int(2.0 * radius / spacing)
	min := r3.Sub(center, r3.Vec{X: radius, Y: radius, Z: radius})
	r2 := radius * radius
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			for k := 0; k <= n; k++ {
				p := r3.Vec{
					X: min.X + (float64(i)+0.5)*spacing,
					Y: min.Y + (float64(j)+0.5)*spacing,
					Z: min.Z + (float64(k)+0.5)*spacing,
				}
				if r3.Norm2(r3.Sub(p, center)) <= r2 {
					points = append(points, p)
				}
			}
		}
	}
	return points
}

// SphereSurface samples the surface of a sphere with rings of
// approximately uniform arc spacing.
func SphereSurface(center r3.Vec, radius, spacing float64) []r3.Vec {
	var points []r3.Vec
	nTheta := int(math.Pi * radius / spacing)
	if nTheta < 1 {
		nTheta = 1
	}
	for it := 0; it <= nTheta; it++ {
		theta := math.Pi * float64(it) / float64(nTheta)
		ringRadius := radius * math.Sin(theta)
		y := radius * math.Cos(theta)
		nPhi := int(2.0 * math.Pi * ringRadius / spacing)
		if nPhi < 1 {
			points = append(points, r3.Add(center, r3.Vec{Y: y}))
			continue
		}
		for ip := 0; ip < nPhi; ip++ {
			phi := 2.0 * math.Pi * float64(ip) / float64(nPhi)
			points = append(points, r3.Add(center, r3.Vec{
				X: ringRadius * math.Cos(phi),
				Y: y,
				Z: ringRadius * math.Sin(phi),
			}))
		}
	}
	return points
}

// HemiSphereSurface samples the upper half of a sphere surface,
// including the equator ring.
func HemiSphereSurface(center r3.Vec, radius, spacing float64) []r3.Vec {
	all := SphereSurface(center, radius, spacing)
	points := all[:0:0]
	for _, p := range all {
		if p.Y >= center.Y {
			points = append(points, p)
		}
	}
	return points
}

// Disk samples a flat disk in the XZ plane through center as concentric
// rings, including the center point.
func Disk(center r3.Vec, radius, spacing float64) []r3.Vec {
	points := []r3.Vec{center}
	for r := spacing; r <= radius; r += spacing {
		n := int(2.0 * math.Pi * r / spacing)
		if n < 1 {
			n = 1
		}
		for i := 0; i < n; i++ {
			phi := 2.0 * math.Pi * float64(i) / float64(n)
			points = append(points, r3.Add(center, r3.Vec{
				X: r * math.Cos(phi),
				Z: r * math.Sin(phi),
			}))
		}
	}
	return points
}

// Cylinder samples the lateral surface of a Y-axis-aligned cylinder,
// capped with disks at both ends.
func Cylinder(center r3.Vec, radius, height, spacing float64) []r3.Vec {
	var points []r3.Vec
	bottom := center.Y - height/2.0
	nRings := int(height / spacing)
	nPhi := int(2.0 * math.Pi * radius / spacing)
	if nPhi < 1 {
		nPhi = 1
	}
	for j := 0; j <= nRings; j++ {
		y := bottom + float64(j)*spacing
		for i := 0; i < nPhi; i++ {
			phi := 2.0 * math.Pi * float64(i) / float64(nPhi)
			points = append(points, r3.Vec{
				X: center.X + radius*math.Cos(phi),
				Y: y,
				Z: center.Z + radius*math.Sin(phi),
			})
		}
	}
	points = append(points, Disk(r3.Vec{X: center.X, Y: bottom, Z: center.Z}, radius-spacing, spacing)...)
	points = append(points, Disk(r3.Vec{X: center.X, Y: bottom + float64(nRings)*spacing, Z: center.Z}, radius-spacing, spacing)...)
	return points
}
