package geometry

import (
	"math"

	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// orientEps is the tolerance below which a cross product is treated as zero.
const orientEps = 1e-12

// cross returns the z component of (b-a) x (c-a).
func cross(a, b, c model.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// orientation classifies c relative to the directed line a->b:
// -1 clockwise, 0 collinear, 1 counter-clockwise.
func orientation(a, b, c model.Point) int {
	v := cross(a, b, c)
	if v > orientEps {
		return 1
	}
	if v < -orientEps {
		return -1
	}
	return 0
}

// onSegment reports whether collinear point p lies on segment [a, b].
func onSegment(a, b, p model.Point) bool {
	return p.X >= math.Min(a.X, b.X)-orientEps && p.X <= math.Max(a.X, b.X)+orientEps &&
		p.Y >= math.Min(a.Y, b.Y)-orientEps && p.Y <= math.Max(a.Y, b.Y)+orientEps
}

// segmentsTouch reports whether segments [p1,p2] and [q1,q2] share any
// point, including endpoint contact and collinear overlap.
func segmentsTouch(p1, p2, q1, q2 model.Point) bool {
	o1 := orientation(p1, p2, q1)
	o2 := orientation(p1, p2, q2)
	o3 := orientation(q1, q2, p1)
	o4 := orientation(q1, q2, p2)

	if o1 != o2 && o3 != o4 {
		return true
	}

	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, p2, q2) {
		return true
	}
	if o3 == 0 && onSegment(q1, q2, p1) {
		return true
	}
	if o4 == 0 && onSegment(q1, q2, p2) {
		return true
	}
	return false
}

// properCrossing computes the interior intersection point of segments
// [p1,p2] and [q1,q2]. It returns false when the segments are parallel,
// collinear, or meet only at an endpoint.
func properCrossing(p1, p2, q1, q2 model.Point) (model.Point, bool) {
	d1 := model.Point{X: p2.X - p1.X, Y: p2.Y - p1.Y}
	d2 := model.Point{X: q2.X - q1.X, Y: q2.Y - q1.Y}
	denom := d1.X*d2.Y - d1.Y*d2.X
	if math.Abs(denom) < orientEps {
		return model.Point{}, false
	}

	w := model.Point{X: q1.X - p1.X, Y: q1.Y - p1.Y}
	t := (w.X*d2.Y - w.Y*d2.X) / denom
	u := (w.X*d1.Y - w.Y*d1.X) / denom
	if t <= orientEps || t >= 1-orientEps || u <= orientEps || u >= 1-orientEps {
		return model.Point{}, false
	}

	return model.Point{X: p1.X + t*d1.X, Y: p1.Y + t*d1.Y}, true
}

// ringIsSimple reports whether no two non-adjacent edges of the closed ring
// share a point. Rings with fewer than 3 vertices are not simple.
func ringIsSimple(r model.Ring) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Adjacent edges legitimately share one endpoint.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsTouch(r[i], r[(i+1)%n], r[j], r[(j+1)%n]) {
				return false
			}
		}
	}
	return true
}
