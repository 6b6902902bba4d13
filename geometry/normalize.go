// Package geometry validates and repairs decoded annotation geometries so
// that every geometry passed downstream is simple, implicitly closed, and
// has at least 3 distinct vertices per ring. Geometries that cannot be
// repaired are rejected with a skip reason, never passed through.
package geometry

import (
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// DefaultSnapDistance is the vertex snap distance used when none is
// configured. Vertices closer than this are treated as coincident.
const DefaultSnapDistance = 1e-7

// maxRepairDepth bounds the recursive ring splitting during repair.
const maxRepairDepth = 32

// minAreaShare is the fraction of the total absolute area the surviving
// loop of a repaired ring must carry for the repair to be accepted.
const minAreaShare = 0.5

// Normalizer validates and repairs annotation polygons.
type Normalizer struct {
	// SnapDistance is the distance under which consecutive vertices are
	// merged during deduplication.
	SnapDistance float64
}

// NewNormalizer returns a Normalizer with the default snap distance.
func NewNormalizer() *Normalizer {
	return &Normalizer{SnapDistance: DefaultSnapDistance}
}

// Normalize validates and repairs the polygon. On success it returns the
// normalized polygon and SkipNone. On failure it returns an empty polygon
// and the reason the annotation must be skipped.
//
// Ring and vertex order are preserved; only duplicate vertices, explicit
// closing vertices, and unrepairable rings are removed. Hole rings that
// individually fail validation are dropped while the exterior survives.
func (n *Normalizer) Normalize(p model.Polygon) (model.Polygon, model.SkipReason) {
	if p.IsEmpty() {
		return model.Polygon{}, model.SkipMissingGeometry
	}

	snap := n.SnapDistance
	if snap <= 0 {
		snap = DefaultSnapDistance
	}

	var out model.Polygon
	for i, ring := range p.Rings {
		fixed, ok := n.normalizeRing(ring, snap)
		if !ok {
			if i == 0 {
				if len(dedup(ring, snap)) < 3 {
					return model.Polygon{}, model.SkipTooFewVertices
				}
				return model.Polygon{}, model.SkipRepairFailed
			}
			// An invalid hole is dropped; the exterior stands.
			continue
		}
		out.Rings = append(out.Rings, fixed)
	}
	return out, model.SkipNone
}

// normalizeRing runs the repair pipeline on one ring: snap-dedup, minimum
// vertex check, simplicity check, and split repair.
func (n *Normalizer) normalizeRing(ring model.Ring, snap float64) (model.Ring, bool) {
	r := dedup(ring, snap)
	if len(r) < 3 {
		return nil, false
	}
	if ringIsSimple(r) {
		if r.Area() <= orientEps {
			return nil, false
		}
		return r, true
	}

	loops := splitSimpleLoops(r, snap, 0)
	if len(loops) == 0 {
		return nil, false
	}

	var total float64
	best := -1
	bestArea := -1.0
	for i, loop := range loops {
		a := loop.Area()
		total += a
		if a > bestArea {
			best = i
			bestArea = a
		}
	}
	if bestArea <= 0 || bestArea < total*minAreaShare {
		return nil, false
	}
	return loops[best], true
}

// dedup removes consecutive vertices within snap distance of each other and
// an explicit closing vertex, returning a fresh open-form ring.
func dedup(ring model.Ring, snap float64) model.Ring {
	if len(ring) == 0 {
		return nil
	}
	out := make(model.Ring, 0, len(ring))
	out = append(out, ring[0])
	for _, v := range ring[1:] {
		if v.Distance(out[len(out)-1]) > snap {
			out = append(out, v)
		}
	}
	// Drop the explicit closing vertex; closure is implicit.
	for len(out) > 1 && out[len(out)-1].Distance(out[0]) <= snap {
		out = out[:len(out)-1]
	}
	return out
}

// splitSimpleLoops decomposes a ring into simple loops by cutting it at
// proper self-crossings and at repeated vertices. It returns only loops
// that survive deduplication with at least 3 vertices and non-zero area.
func splitSimpleLoops(ring model.Ring, snap float64, depth int) []model.Ring {
	if depth > maxRepairDepth {
		return nil
	}

	r := dedup(ring, snap)
	if len(r) < 3 {
		return nil
	}
	if ringIsSimple(r) {
		if r.Area() <= orientEps {
			return nil
		}
		return []model.Ring{r}
	}

	if a, b, ok := findCrossing(r); ok {
		return append(
			splitSimpleLoops(a, snap, depth+1),
			splitSimpleLoops(b, snap, depth+1)...,
		)
	}
	if a, b, ok := findPinch(r, snap); ok {
		return append(
			splitSimpleLoops(a, snap, depth+1),
			splitSimpleLoops(b, snap, depth+1)...,
		)
	}

	// Non-simple without a crossing or pinch point, e.g. collinear
	// overlapping edges. Not repairable by splitting.
	return nil
}

// findCrossing locates the first proper self-crossing of the ring and
// returns the two loops obtained by cutting there.
func findCrossing(r model.Ring) (model.Ring, model.Ring, bool) {
	n := len(r)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			x, ok := properCrossing(r[i], r[(i+1)%n], r[j], r[(j+1)%n])
			if !ok {
				continue
			}

			// Loop A follows edges i+1..j then cuts back to x.
			a := model.Ring{x}
			a = append(a, r[i+1:j+1]...)
			// Loop B follows edges j+1..i (wrapping) then cuts back.
			b := model.Ring{x}
			b = append(b, r[j+1:]...)
			b = append(b, r[:i+1]...)
			return a, b, true
		}
	}
	return nil, nil, false
}

// findPinch locates a repeated non-consecutive vertex (a self-touching
// point) and returns the two loops joined there.
func findPinch(r model.Ring, snap float64) (model.Ring, model.Ring, bool) {
	n := len(r)
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if r[i].Distance(r[j]) > snap {
				continue
			}
			a := append(model.Ring{}, r[i:j]...)
			b := append(model.Ring{}, r[j:]...)
			b = append(b, r[:i]...)
			return a, b, true
		}
	}
	return nil, nil, false
}
