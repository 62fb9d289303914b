package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

const circleSegments = 24

func boxVertices(w, h float64) []cp.Vector {
	hw, hh := w/2, h/2
	return []cp.Vector{
		{X: -hw, Y: -hh},
		{X: hw, Y: -hh},
		{X: hw, Y: hh},
		{X: -hw, Y: hh},
	}
}

func regularPolygon(sides int, radius float64) []cp.Vector {
	verts := make([]cp.Vector, sides)
	for i := 0; i < sides; i++ {
		a := 2 * math.Pi * float64(i) / float64(sides)
		verts[i] = cp.Vector{X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
	return verts
}

// hull returns the convex hull of verts re-centered on its centroid,
// plus the centroid offset that was removed.
func hull(verts []cp.Vector) ([]cp.Vector, cp.Vector) {
	work := make([]cp.Vector, len(verts))
	copy(work, verts)
	n := cp.ConvexHull(len(work), work, nil, 0)
	work = work[:n]
	if n < 3 {
		return work, cp.Vector{}
	}

	c := cp.CentroidForPoly(n, work)
	for i := range work {
		work[i] = work[i].Sub(c)
	}
	return work, c
}

func polygonArea(verts []cp.Vector) float64 {
	return math.Abs(cp.AreaForPoly(len(verts), verts, 0))
}

func copyVertices(verts []cp.Vector) []cp.Vector {
	out := make([]cp.Vector, len(verts))
	copy(out, verts)
	return out
}
