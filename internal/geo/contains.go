// Package geo implements the containment test used to tag coordinates with
// the administrative boundary they fall in.
//
// Points and rings use orb's [lng, lat] order. Containment is the even-odd
// rule: a horizontal ray is cast from the point towards +lng and every ring of
// a polygon (outer boundary and holes alike) flips the result once per edge it
// crosses. Ring winding is not validated; source data is trusted to be
// well-formed. No epsilon is applied, so a point lying exactly on an edge gets
// whatever answer that edge's comparison produces.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// PointInRegion reports whether pt is inside g. Polygons and multipolygons are
// supported; any other geometry, including nil, is never matched.
func PointInRegion(pt orb.Point, g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return polygonContains(geom, pt)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if polygonContains(poly, pt) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly orb.Polygon, pt orb.Point) bool {
	if len(poly) == 0 || !ringsBound(poly).Contains(pt) {
		return false
	}

	inside := false
	for _, ring := range poly {
		if crossesOdd(ring, pt) {
			inside = !inside
		}
	}
	return inside
}

// crossesOdd counts the edges of ring crossed by the ray from pt and reports
// whether the count is odd. The ring is treated as closed whether or not its
// last vertex repeats the first. Rings with fewer than three vertices enclose
// nothing.
func crossesOdd(ring orb.Ring, pt orb.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	x, y := pt[0], pt[1]
	odd := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			odd = !odd
		}
	}
	return odd
}

// ringsBound covers every ring, not just the outer one, so that the early
// rejection can never disagree with the full parity test.
func ringsBound(poly orb.Polygon) orb.Bound {
	b := poly[0].Bound()
	for _, ring := range poly[1:] {
		if len(ring) > 0 {
			b = b.Union(ring.Bound())
		}
	}
	return b
}

// Centroid returns the area centroid of a polygonal geometry, used to place
// overlay labels. Other geometries fall back to the center of their bound.
func Centroid(g orb.Geometry) orb.Point {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		c, area := planar.CentroidArea(g)
		if area != 0 {
			return c
		}
	}
	if g == nil {
		return orb.Point{}
	}
	return g.Bound().Center()
}
