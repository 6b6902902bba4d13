// Package transform rescales normalized annotation geometries from their
// authored coordinate space into slide level-0 pixel space and clamps them
// to the slide bounds.
package transform

import (
	"fmt"
	"math"

	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// UnresolvableScaleError indicates the scale factor between the annotation
// coordinate space and slide level 0 cannot be determined. It aborts the
// run: without it every emitted coordinate would be wrong.
type UnresolvableScaleError struct {
	Err error
}

// Error implements the error interface.
func (e *UnresolvableScaleError) Error() string {
	return fmt.Sprintf("unresolvable coordinate scale: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnresolvableScaleError) Unwrap() error { return e.Err }

// Transformer maps geometries from one source coordinate space into the
// level-0 pixel space of one slide. It is immutable and safe for
// concurrent use.
type Transformer struct {
	meta  model.SlideMetadata
	scale float64
}

// New resolves the scale factor for the given source resolution against
// the slide metadata. An explicit pyramid level wins over an explicit
// micron-per-pixel value; with neither, coordinates are taken to be
// level-0 pixels already.
func New(meta model.SlideMetadata, res model.Resolution) (*Transformer, error) {
	if err := meta.Validate(); err != nil {
		return nil, &UnresolvableScaleError{Err: err}
	}

	scale := 1.0
	switch {
	case res.HasLevel:
		ds, err := meta.Downsample(res.Level)
		if err != nil {
			return nil, &UnresolvableScaleError{Err: err}
		}
		scale = ds
	case res.HasMPP:
		if meta.MPP <= 0 {
			return nil, &UnresolvableScaleError{
				Err: fmt.Errorf("annotation authored at %g mpp but slide reports no physical resolution", res.MPP),
			}
		}
		scale = res.MPP / meta.MPP
	}

	return &Transformer{meta: meta, scale: scale}, nil
}

// Scale returns the resolved source-to-level-0 scale factor.
func (t *Transformer) Scale() float64 {
	return t.scale
}

// Result carries the outcome of transforming one geometry.
type Result struct {
	// Polygon is the transformed geometry in level-0 pixel coordinates.
	// Empty when Skip is set.
	Polygon model.Polygon
	// ClampEvents counts vertices that were moved onto the slide bounds.
	ClampEvents int
	// Skip is SkipNone on success, or the reason the geometry was
	// dropped.
	Skip model.SkipReason
}

// Apply rescales the polygon into level-0 pixel space, rounds once
// (half-to-even) and clamps every coordinate to [0, W-1] x [0, H-1].
// Geometries that collapse to a point or line after clamping are dropped.
// The input polygon is never mutated.
func (t *Transformer) Apply(p model.Polygon) Result {
	maxX := float64(t.meta.Width() - 1)
	maxY := float64(t.meta.Height() - 1)

	var res Result
	var out model.Polygon
	for i, ring := range p.Rings {
		mapped := make(model.Ring, 0, len(ring))
		for _, v := range ring {
			// Scale in full precision; round exactly once at the end.
			x := math.RoundToEven(v.X * t.scale)
			y := math.RoundToEven(v.Y * t.scale)

			cx := clamp(x, 0, maxX)
			cy := clamp(y, 0, maxY)
			if cx != x || cy != y {
				res.ClampEvents++
			}

			// Clamping can collapse neighboring vertices onto the
			// boundary; keep the ring free of consecutive duplicates.
			next := model.Point{X: cx, Y: cy}
			if len(mapped) > 0 && mapped[len(mapped)-1] == next {
				continue
			}
			mapped = append(mapped, next)
		}
		if len(mapped) > 1 && mapped[len(mapped)-1] == mapped[0] {
			mapped = mapped[:len(mapped)-1]
		}

		if mapped.DistinctVertices() < 3 || mapped.Area() <= 0 {
			if i == 0 {
				return Result{Skip: model.SkipDegenerateAfterClamp, ClampEvents: res.ClampEvents}
			}
			// Collapsed holes vanish; the exterior stands.
			continue
		}
		out.Rings = append(out.Rings, mapped)
	}

	res.Polygon = out
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
