package model

import "math"

// Point represents a 2D pixel coordinate.
type Point struct {
	X, Y float64
}

// Distance calculates the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Scale returns the point with both coordinates multiplied by factor.
func (p Point) Scale(factor float64) Point {
	return Point{X: p.X * factor, Y: p.Y * factor}
}

// Ring is an ordered sequence of vertices describing one polygon boundary.
// Rings are stored open-form: the closing edge from the last vertex back to
// the first is implicit, and an explicit duplicate closing vertex is removed
// during normalization.
type Ring []Point

// Clone creates a deep copy of the ring.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// SignedArea returns the shoelace area of the ring. The sign encodes
// winding direction: positive for counter-clockwise in a Y-down pixel
// coordinate system is not assumed; callers that only care about magnitude
// should use Area.
func (r Ring) SignedArea() float64 {
	if len(r) < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < len(r); i++ {
		j := (i + 1) % len(r)
		sum += r[i].X*r[j].Y - r[j].X*r[i].Y
	}
	return sum / 2
}

// Area returns the absolute shoelace area of the ring.
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// DistinctVertices counts vertices after collapsing exact consecutive
// duplicates, treating the ring as closed.
func (r Ring) DistinctVertices() int {
	if len(r) == 0 {
		return 0
	}
	n := 1
	for i := 1; i < len(r); i++ {
		if r[i] != r[i-1] {
			n++
		}
	}
	// The implicit closing edge may join two copies of the same vertex.
	if n > 1 && r[len(r)-1] == r[0] {
		n--
	}
	return n
}

// Polygon is a geometry made of one exterior ring followed by zero or more
// hole rings.
type Polygon struct {
	Rings []Ring
}

// Exterior returns the exterior ring, or nil for an empty polygon.
func (p Polygon) Exterior() Ring {
	if len(p.Rings) == 0 {
		return nil
	}
	return p.Rings[0]
}

// Holes returns the hole rings, which may be empty.
func (p Polygon) Holes() []Ring {
	if len(p.Rings) < 2 {
		return nil
	}
	return p.Rings[1:]
}

// IsEmpty returns true if the polygon has no exterior ring.
func (p Polygon) IsEmpty() bool {
	return len(p.Rings) == 0 || len(p.Rings[0]) == 0
}

// Area returns the area of the exterior ring minus the area of the holes.
// The result is never negative.
func (p Polygon) Area() float64 {
	if p.IsEmpty() {
		return 0
	}
	area := p.Rings[0].Area()
	for _, hole := range p.Rings[1:] {
		area -= hole.Area()
	}
	if area < 0 {
		return 0
	}
	return area
}

// Bounds returns the axis-aligned bounding box of all vertices in the
// polygon. Returns zero points for an empty polygon.
func (p Polygon) Bounds() (min, max Point) {
	first := true
	for _, ring := range p.Rings {
		for _, v := range ring {
			if first {
				min, max = v, v
				first = false
				continue
			}
			min.X = math.Min(min.X, v.X)
			min.Y = math.Min(min.Y, v.Y)
			max.X = math.Max(max.X, v.X)
			max.Y = math.Max(max.Y, v.Y)
		}
	}
	return min, max
}

// Clone creates a deep copy of the polygon.
func (p Polygon) Clone() Polygon {
	if p.Rings == nil {
		return Polygon{}
	}
	rings := make([]Ring, len(p.Rings))
	for i, r := range p.Rings {
		rings[i] = r.Clone()
	}
	return Polygon{Rings: rings}
}
