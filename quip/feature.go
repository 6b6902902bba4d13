// Package quip serializes converted annotations into the flat record
// format consumed by QuIP: a features CSV per predicted class plus an
// algmeta JSON manifest describing the analysis.
package quip

import (
	"strconv"
	"strings"

	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// Feature is one output record: a transformed geometry plus the metadata
// QuIP ingestion reads alongside it.
type Feature struct {
	// AreaInPixels is the polygon area in level-0 pixels.
	AreaInPixels float64
	// PhysicalSize mirrors AreaInPixels, as the upstream format does.
	PhysicalSize float64
	// ClassID is the predicted class.
	ClassID int
	// Polygon is the transformed geometry in level-0 pixel coordinates.
	Polygon model.Polygon
	// RecordID is the stable output identifier: the source annotation id
	// when one exists, otherwise a per-run counter value.
	RecordID string
	// SlideID identifies the slide the record belongs to.
	SlideID string
	// SourceID is the annotation id in the input document.
	SourceID string
}

// PolygonString renders a polygon in QuIP's coordinate-string form:
// "[x1:y1:x2:y2:...]", with additional rings (holes or extra parts)
// joined by "|" inside the brackets.
func PolygonString(p model.Polygon) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, ring := range p.Rings {
		if i > 0 {
			sb.WriteByte('|')
		}
		for j, v := range ring {
			if j > 0 {
				sb.WriteByte(':')
			}
			sb.WriteString(formatCoord(v.X))
			sb.WriteByte(':')
			sb.WriteString(formatCoord(v.Y))
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// formatCoord renders a coordinate without a trailing ".0" for integral
// values, matching the upstream converter's output.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
