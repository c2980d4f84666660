// Package geofence bounds vehicle travel with WGS84 polygons. The validator
// core is shared by the out-of-process server (cmd/geofenced) and by tests;
// missions normally talk to it through Client.
package geofence

// Point is a polygon vertex.
type Point struct {
	Lat float64
	Lon float64
}

// Polygon is a closed region on the surface, vertices in order. The closing
// edge from the last vertex back to the first is implicit.
type Polygon []Point

// Contains reports whether the point (lat, lon) is inside the polygon,
// using ray casting.
func (p Polygon) Contains(lat, lon float64) bool {
	inside := false
	j := len(p) - 1
	for i := 0; i < len(p); i++ {
		li, lj := p[i], p[j]
		if ((li.Lat > lat) != (lj.Lat > lat)) &&
			(lon < (lj.Lon-li.Lon)*(lat-li.Lat)/(lj.Lat-li.Lat)+li.Lon) {
			inside = !inside
		}
		j = i
	}
	return inside
}

// IntersectsSegment reports whether the segment from a to b crosses any
// polygon edge.
func (p Polygon) IntersectsSegment(a, b Point) bool {
	n := len(p)
	for i := 0; i < n; i++ {
		if segmentsIntersect(a, b, p[i], p[(i+1)%n]) {
			return true
		}
	}
	return false
}

// orientation of the ordered triplet (a, b, c): 0 colinear, 1 clockwise,
// 2 counterclockwise.
func orientation(a, b, c Point) int {
	val := (b.Lat-a.Lat)*(c.Lon-b.Lon) - (b.Lon-a.Lon)*(c.Lat-b.Lat)
	switch {
	case val > 0:
		return 1
	case val < 0:
		return 2
	}
	return 0
}

// liesOnSegment reports whether colinear point q lies within the bounding
// box of segment ar.
func liesOnSegment(a, q, r Point) bool {
	return q.Lon <= max(a.Lon, r.Lon) && q.Lon >= min(a.Lon, r.Lon) &&
		q.Lat <= max(a.Lat, r.Lat) && q.Lat >= min(a.Lat, r.Lat)
}

func segmentsIntersect(p1, q1, p2, q2 Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// Colinear special cases.
	if o1 == 0 && liesOnSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && liesOnSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && liesOnSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && liesOnSegment(p2, q1, q2) {
		return true
	}
	return false
}
