package model

import "fmt"

// Resolution identifies the coordinate space an annotation document was
// authored in: an explicit pyramid level, an explicit micron-per-pixel
// value, or neither (level-0 pixels assumed).
type Resolution struct {
	Level    int
	HasLevel bool

	MPP    float64
	HasMPP bool

	// Magnification is recorded for provenance only (HoVerNet's "mag"
	// field); it never participates in coordinate scaling.
	Magnification float64
}

// RawAnnotation is one decoded input record. It is created by the parser
// and immutable thereafter.
type RawAnnotation struct {
	// ID is the instance identifier from the input document, unique
	// within it.
	ID string
	// ClassID is the predicted class. Records without a class use 0,
	// HoVerNet's "no label" convention.
	ClassID int
	// ClassProb is the prediction confidence, when reported.
	ClassProb float64
	// Centroid is the reported instance centroid in source coordinates.
	Centroid    Point
	HasCentroid bool
	// Polygon holds the contour in source coordinates.
	Polygon Polygon
}

// SkipReason classifies why an individual annotation produced no output
// record. Skips are counted and reported, never silently swallowed.
type SkipReason int

const (
	// SkipNone marks an annotation that was not skipped.
	SkipNone SkipReason = iota
	// SkipMissingGeometry marks a record without a usable contour.
	SkipMissingGeometry
	// SkipTooFewVertices marks a ring with fewer than 3 distinct vertices.
	SkipTooFewVertices
	// SkipRepairFailed marks a self-intersecting ring that could not be
	// repaired.
	SkipRepairFailed
	// SkipDegenerateAfterClamp marks a geometry that collapsed to a point
	// or line after clamping to slide bounds.
	SkipDegenerateAfterClamp
)

// String returns the reason code used in summaries.
func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipMissingGeometry:
		return "missing-geometry"
	case SkipTooFewVertices:
		return "too-few-vertices"
	case SkipRepairFailed:
		return "repair-failed"
	case SkipDegenerateAfterClamp:
		return "degenerate-after-clamp"
	default:
		return "unknown"
	}
}

// Warning records a non-fatal per-annotation issue encountered during
// conversion.
type Warning struct {
	AnnotationID string
	Reason       SkipReason
	Message      string
}

// String formats the warning for operator-facing output.
func (w Warning) String() string {
	if w.AnnotationID == "" {
		return fmt.Sprintf("[%s] %s", w.Reason, w.Message)
	}
	return fmt.Sprintf("[%s] annotation %s: %s", w.Reason, w.AnnotationID, w.Message)
}
