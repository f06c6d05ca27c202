package sample

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const geomEps = 1e-12

// Edge subdivides the open segment (p1, p2) at the given particle
// diameter. Endpoints are excluded so shared edges are not sampled twice.
func Edge(p1, p2 r3.Vec, diameter float64) []r3.Vec {
	edge := r3.Sub(p2, p1)
	n := int(r3.Norm(edge) / diameter)
	if n < 1 {
		return nil
	}
	step := r3.Scale(1.0/float64(n), edge)
	points := make([]r3.Vec, 0, n-1)
	for j := 1; j < n; j++ {
		points = append(points, r3.Add(p1, r3.Scale(float64(j), step)))
	}
	return points
}

// Triangle fills the interior of a triangle with points at the given
// particle diameter by sweeping lines parallel to its shortest edge.
// It reports false for degenerate triangles (coincident or parallel
// edges), in which case no points are returned; the caller decides
// whether a failed primitive aborts setup.
func Triangle(p1, p2, p3 r3.Vec, diameter float64) ([]r3.Vec, bool) {
	v := [3]r3.Vec{p1, p2, p3}
	edgeV := [3]r3.Vec{r3.Sub(v[1], v[0]), r3.Sub(v[2], v[1]), r3.Sub(v[0], v[2])}
	edgeI := [3][2]int{{0, 1}, {1, 2}, {2, 0}}
	edgeL := [3]float64{r3.Norm(edgeV[0]), r3.Norm(edgeV[1]), r3.Norm(edgeV[2])}

	// Shortest edge anchors the sweep; the longest sets the height.
	sEdge, lEdge := 0, 0
	for i := 1; i < 3; i++ {
		if edgeL[i] < edgeL[sEdge] {
			sEdge = i
		}
		if edgeL[i] > edgeL[lEdge] {
			lEdge = i
		}
	}
	if edgeL[sEdge] < geomEps {
		return nil, false
	}

	cross := r3.Cross(edgeV[lEdge], edgeV[sEdge])
	normal := r3.Cross(edgeV[sEdge], cross)
	norm := r3.Norm(normal)
	if norm < geomEps {
		return nil, false
	}
	normal = r3.Scale(1.0/norm, normal)

	// Point the sweep normal toward the vertex opposite the short edge.
	third := 3 - edgeI[sEdge][0] - edgeI[sEdge][1]
	if r3.Dot(normal, r3.Sub(v[third], v[edgeI[sEdge][0]])) < 0 {
		normal = r3.Scale(-1, normal)
	}

	height := math.Abs(r3.Dot(normal, edgeV[lEdge]))
	sweepSteps := int(height / diameter)
	edge1 := (sEdge + 1) % 3
	edge2 := (sEdge + 2) % 3

	var points []r3.Vec
	for i := 1; i < sweepSteps; i++ {
		off := r3.Scale(float64(i)*diameter, normal)
		sweepA := r3.Add(v[edgeI[sEdge][0]], off)
		sweepB := r3.Add(v[edgeI[sEdge][1]], off)

		i1, _, ok := lineLineIntersect(v[edgeI[edge1][0]], v[edgeI[edge1][1]], sweepA, sweepB)
		if !ok {
			return points, false
		}
		i2, _, ok := lineLineIntersect(v[edgeI[edge2][0]], v[edgeI[edge2][1]], sweepA, sweepB)
		if !ok {
			return points, false
		}

		span := r3.Sub(i1, i2)
		steps := int(r3.Norm(span) / diameter)
		if steps < 1 {
			continue
		}
		step := r3.Scale(1.0/float64(steps), span)
		for j := 1; j < steps; j++ {
			points = append(points, r3.Add(i2, r3.Scale(float64(j), step)))
		}
	}
	return points, true
}

// TriangleShell samples a triangle's vertices, open edges, and interior.
func TriangleShell(p1, p2, p3 r3.Vec, diameter float64) ([]r3.Vec, bool) {
	points := []r3.Vec{p1, p2, p3}
	interior, ok := Triangle(p1, p2, p3, diameter)
	points = append(points, interior...)
	points = append(points, Edge(p1, p2, diameter)...)
	points = append(points, Edge(p1, p3, diameter)...)
	points = append(points, Edge(p2, p3, diameter)...)
	return points, ok
}

// lineLineIntersect finds the closest approach of the infinite lines
// p1p2 and p3p4, returning the point on each. It reports false when
// either line is degenerate or the lines are parallel.
func lineLineIntersect(p1, p2, p3, p4 r3.Vec) (pa, pb r3.Vec, ok bool) {
	p13 := r3.Sub(p1, p3)
	p43 := r3.Sub(p4, p3)
	p21 := r3.Sub(p2, p1)

	if r3.Norm2(p43) < geomEps || r3.Norm2(p21) < geomEps {
		return r3.Vec{}, r3.Vec{}, false
	}

	d1343 := r3.Dot(p13, p43)
	d4321 := r3.Dot(p43, p21)
	d1321 := r3.Dot(p13, p21)
	d4343 := r3.Dot(p43, p43)
	d2121 := r3.Dot(p21, p21)

	denom := d2121*d4343 - d4321*d4321
	if math.Abs(denom) < geomEps {
		return r3.Vec{}, r3.Vec{}, false
	}
	mua := (d1343*d4321 - d1321*d4343) / denom
	mub := (d1343 + d4321*mua) / d4343

	pa = r3.Add(p1, r3.Scale(mua, p21))
	pb = r3.Add(p3, r3.Scale(mub, p43))
	return pa, pb, true
}
