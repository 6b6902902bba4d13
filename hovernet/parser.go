// Package hovernet decodes HoVerNet output JSON into annotation records.
//
// The document is a single JSON object whose "nuc" member maps instance
// ids to predictions (contour, type, centroid, bbox, type_prob), with
// optional top-level "mag", "mpp", and "level" members describing the
// coordinate space the contours were authored in. A record with an
// unusable contour is skipped with a warning; only a document that is not
// valid JSON or lacks "nuc" entirely is a fatal parse error.
package hovernet

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/kaczmarj/convert-hovernet-to-quip/format"
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// MalformedInputError indicates the annotation document as a whole is
// unusable: not valid JSON, or missing the required annotation map.
type MalformedInputError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed annotation document: %v", e.Err)
	}
	return fmt.Sprintf("malformed annotation document %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MalformedInputError) Unwrap() error { return e.Err }

// Document is a fully decoded annotation document. Iterating it is
// restartable: the same input always yields the same record sequence.
type Document struct {
	resolution model.Resolution
	records    []model.RawAnnotation
	warnings   []model.Warning
	total      int
}

// Resolution returns the coordinate-space reference the document was
// authored in.
func (d *Document) Resolution() model.Resolution { return d.resolution }

// Annotations returns the successfully decoded records in deterministic
// order (numeric instance-id order when ids are integers).
func (d *Document) Annotations() []model.RawAnnotation { return d.records }

// Warnings returns one warning per skipped input record.
func (d *Document) Warnings() []model.Warning { return d.warnings }

// SkippedCount returns the number of input records that were skipped
// during parsing.
func (d *Document) SkippedCount() int { return d.total - len(d.records) }

// TotalRecords returns the number of records in the input document,
// including skipped ones.
func (d *Document) TotalRecords() int { return d.total }

type rawInstance struct {
	BBox     [][]float64 `json:"bbox"`
	Centroid []float64   `json:"centroid"`
	Contour  [][]float64 `json:"contour"`
	TypeProb *float64    `json:"type_prob"`
	Type     *int        `json:"type"`
}

type rawDocument struct {
	Mag   *float64        `json:"mag"`
	MPP   *float64        `json:"mpp"`
	Level *int            `json:"level"`
	Nuc   json.RawMessage `json:"nuc"`
}

// ParseFile reads and decodes an annotation document, transparently
// handling gzip-compressed input (detected by magic bytes, not extension).
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedInputError{Path: path, Err: err}
	}

	if format.DetectEncoding(data) == format.GzipJSON {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &MalformedInputError{Path: path, Err: err}
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, &MalformedInputError{Path: path, Err: err}
		}
	}

	doc, err := Parse(data)
	if err != nil {
		var malformed *MalformedInputError
		if errors.As(err, &malformed) {
			malformed.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Parse decodes an annotation document from raw JSON bytes.
func Parse(data []byte) (*Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedInputError{Err: err}
	}
	if len(raw.Nuc) == 0 || bytes.Equal(bytes.TrimSpace(raw.Nuc), []byte("null")) {
		return nil, &MalformedInputError{Err: fmt.Errorf(`missing "nuc" annotation map`)}
	}

	var instances map[string]rawInstance
	if err := json.Unmarshal(raw.Nuc, &instances); err != nil {
		return nil, &MalformedInputError{Err: fmt.Errorf(`decoding "nuc": %w`, err)}
	}

	doc := &Document{
		resolution: resolutionFrom(raw),
		total:      len(instances),
	}

	for _, id := range sortedKeys(instances) {
		inst := instances[id]
		ann, warn := decodeInstance(id, inst)
		if warn != nil {
			doc.warnings = append(doc.warnings, *warn)
			continue
		}
		doc.records = append(doc.records, ann)
	}
	return doc, nil
}

// resolutionFrom maps the document-level coordinate-space members onto a
// Resolution. Absent level and mpp, contours are taken as level-0 pixels.
func resolutionFrom(raw rawDocument) model.Resolution {
	var res model.Resolution
	if raw.Level != nil {
		res.Level = *raw.Level
		res.HasLevel = true
	}
	if raw.MPP != nil && *raw.MPP > 0 {
		res.MPP = *raw.MPP
		res.HasMPP = true
	}
	if raw.Mag != nil {
		res.Magnification = *raw.Mag
	}
	return res
}

// decodeInstance converts one raw prediction into a RawAnnotation, or a
// warning when the record lacks a usable contour.
func decodeInstance(id string, inst rawInstance) (model.RawAnnotation, *model.Warning) {
	if len(inst.Contour) == 0 {
		return model.RawAnnotation{}, &model.Warning{
			AnnotationID: id,
			Reason:       model.SkipMissingGeometry,
			Message:      "record has no contour",
		}
	}

	ring := make(model.Ring, 0, len(inst.Contour))
	for i, xy := range inst.Contour {
		if len(xy) != 2 {
			return model.RawAnnotation{}, &model.Warning{
				AnnotationID: id,
				Reason:       model.SkipMissingGeometry,
				Message:      fmt.Sprintf("contour vertex %d is not an x,y pair", i),
			}
		}
		ring = append(ring, model.Point{X: xy[0], Y: xy[1]})
	}

	ann := model.RawAnnotation{
		ID:      id,
		Polygon: model.Polygon{Rings: []model.Ring{ring}},
	}
	if inst.Type != nil {
		ann.ClassID = *inst.Type
	}
	if inst.TypeProb != nil {
		ann.ClassProb = *inst.TypeProb
	}
	if len(inst.Centroid) == 2 {
		ann.Centroid = model.Point{X: inst.Centroid[0], Y: inst.Centroid[1]}
		ann.HasCentroid = true
	}
	return ann, nil
}

// sortedKeys orders instance ids numerically when every id parses as an
// integer (HoVerNet writes integer instance ids), falling back to
// lexicographic order otherwise.
func sortedKeys(instances map[string]rawInstance) []string {
	keys := make([]string, 0, len(instances))
	for k := range instances {
		keys = append(keys, k)
	}

	numeric := make(map[string]int, len(keys))
	allNumeric := true
	for _, k := range keys {
		n, err := strconv.Atoi(k)
		if err != nil {
			allNumeric = false
			break
		}
		numeric[k] = n
	}

	if allNumeric {
		sort.Slice(keys, func(i, j int) bool { return numeric[keys[i]] < numeric[keys[j]] })
	} else {
		sort.Strings(keys)
	}
	return keys
}
