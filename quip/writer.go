package quip

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// featureColumns is the CSV header: the four columns the upstream QuIP
// converter emits, followed by the identifier columns. QuIP ingestion
// reads columns by name and ignores extras.
var featureColumns = []string{
	"AreaInPixels", "PhysicalSize", "ClassId", "Polygon",
	"RecordId", "SlideId", "SourceId",
}

// WriteError indicates the output file could not be written. Committed
// reports how many records reached the output before the failure.
type WriteError struct {
	Path      string
	Committed int
	Err       error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s after %d committed records: %v", e.Path, e.Committed, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error { return e.Err }

// FeatureWriter writes QuIP feature records as CSV. Every record (and the
// header) is rendered to an in-memory buffer and committed with a single
// Write call, so a failed write never leaves a truncated record in the
// output.
type FeatureWriter struct {
	out         io.Writer
	path        string
	committed   int
	wroteHeader bool
}

// NewFeatureWriter creates a writer emitting to w. path is used only for
// error reporting.
func NewFeatureWriter(w io.Writer, path string) *FeatureWriter {
	return &FeatureWriter{out: w, path: path}
}

// Committed returns the number of records committed so far.
func (w *FeatureWriter) Committed() int { return w.committed }

// WriteHeader writes the column header. Write calls it implicitly.
func (w *FeatureWriter) WriteHeader() error {
	if w.wroteHeader {
		return nil
	}
	if err := w.commitRow(featureColumns); err != nil {
		return err
	}
	w.wroteHeader = true
	return nil
}

// Write appends one feature record.
func (w *FeatureWriter) Write(f Feature) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	row := []string{
		formatCoord(f.AreaInPixels),
		formatCoord(f.PhysicalSize),
		fmt.Sprintf("%d", f.ClassID),
		PolygonString(f.Polygon),
		f.RecordID,
		f.SlideID,
		f.SourceID,
	}
	if err := w.commitRow(row); err != nil {
		return err
	}
	w.committed++
	return nil
}

// commitRow renders one CSV row in memory and writes it atomically.
func (w *FeatureWriter) commitRow(row []string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(row); err != nil {
		return &WriteError{Path: w.path, Committed: w.committed, Err: err}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &WriteError{Path: w.path, Committed: w.committed, Err: err}
	}
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return &WriteError{Path: w.path, Committed: w.committed, Err: err}
	}
	return nil
}

// WriteFeaturesFile writes a header plus the given records to path,
// returning the number of committed records. The file is created fresh;
// a zero-length record slice still produces a header-only file.
func WriteFeaturesFile(path string, features []Feature) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, &WriteError{Path: path, Err: err}
	}

	w := NewFeatureWriter(f, path)
	if err := w.WriteHeader(); err != nil {
		f.Close()
		return 0, err
	}
	for _, feat := range features {
		if err := w.Write(feat); err != nil {
			f.Close()
			return w.Committed(), err
		}
	}
	if err := f.Close(); err != nil {
		return w.Committed(), &WriteError{Path: path, Committed: w.Committed(), Err: err}
	}
	return w.Committed(), nil
}
