package quipconvert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kaczmarj/convert-hovernet-to-quip/config"
	"github.com/kaczmarj/convert-hovernet-to-quip/geometry"
	"github.com/kaczmarj/convert-hovernet-to-quip/hovernet"
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
	"github.com/kaczmarj/convert-hovernet-to-quip/quip"
	"github.com/kaczmarj/convert-hovernet-to-quip/slide"
	"github.com/kaczmarj/convert-hovernet-to-quip/transform"
)

// ErrSkipRateExceeded is returned by Run when the fraction of skipped
// annotations exceeds the configured max_skip_ratio.
var ErrSkipRateExceeded = errors.New("skipped annotation ratio exceeds configured limit")

// Converter provides a fluent interface for one conversion run. Each
// configuration method returns a new Converter instance, making it safe
// for concurrent use and allowing method chaining.
type Converter struct {
	// Source
	inputPath string
	doc       *hovernet.Document

	// Slide geometry: either a slide file to read, or injected metadata.
	slidePath string
	meta      model.SlideMetadata
	hasMeta   bool

	// Output identifiers
	subjectID    string
	caseID       string
	analysisID   string
	analysisDesc string

	// Provenance pins; zero values mean "generate at Run time".
	executionID string
	timestamp   time.Time

	cfg config.Config

	// Accumulated error (fail-fast)
	err error
}

func defaultRunConfig() config.Config {
	return config.Default()
}

// clone creates a copy of the Converter so that chained configuration
// never mutates earlier instances.
func (c *Converter) clone() *Converter {
	dup := *c
	if c.cfg.ClassNames != nil {
		dup.cfg.ClassNames = make(map[int]string, len(c.cfg.ClassNames))
		for k, v := range c.cfg.ClassNames {
			dup.cfg.ClassNames[k] = v
		}
	}
	return &dup
}

// Slide sets the whole-slide image the annotations belong to. Its pyramid
// metadata provides the output coordinate bounds and scale reference.
func (c *Converter) Slide(path string) *Converter {
	dup := c.clone()
	dup.slidePath = path
	return dup
}

// WithSlideMetadata injects slide metadata directly instead of reading a
// slide file. It overrides Slide for geometry, but the Slide path (if any)
// still names the output records.
func (c *Converter) WithSlideMetadata(meta model.SlideMetadata) *Converter {
	dup := c.clone()
	dup.meta = meta
	dup.hasMeta = true
	return dup
}

// SubjectID sets the subject identifier recorded in the manifest.
func (c *Converter) SubjectID(id string) *Converter {
	dup := c.clone()
	dup.subjectID = id
	return dup
}

// CaseID sets the case identifier recorded in the manifest and in each
// output record's SlideId column.
func (c *Converter) CaseID(id string) *Converter {
	dup := c.clone()
	dup.caseID = id
	return dup
}

// AnalysisID sets the analysis identifier recorded in the manifest.
func (c *Converter) AnalysisID(id string) *Converter {
	dup := c.clone()
	dup.analysisID = id
	return dup
}

// AnalysisDesc sets the analysis description recorded in the manifest.
func (c *Converter) AnalysisDesc(desc string) *Converter {
	dup := c.clone()
	dup.analysisDesc = desc
	return dup
}

// Workers bounds the number of goroutines transforming annotations.
func (c *Converter) Workers(n int) *Converter {
	dup := c.clone()
	if n < 0 {
		dup.err = fmt.Errorf("workers must not be negative, got %d", n)
		return dup
	}
	dup.cfg.Workers = n
	return dup
}

// WithConfig replaces the run settings wholesale.
func (c *Converter) WithConfig(cfg config.Config) *Converter {
	dup := c.clone()
	if err := cfg.Validate(); err != nil {
		dup.err = err
		return dup
	}
	dup.cfg = cfg
	return dup
}

// WithExecutionID pins the manifest execution id instead of generating a
// fresh UUID, making repeated runs byte-identical.
func (c *Converter) WithExecutionID(id string) *Converter {
	dup := c.clone()
	dup.executionID = id
	return dup
}

// WithTimestamp pins the manifest conversion time instead of using the
// wall clock.
func (c *Converter) WithTimestamp(t time.Time) *Converter {
	dup := c.clone()
	dup.timestamp = t
	return dup
}

// Summary reports what a run produced.
type Summary struct {
	// Total is the number of records in the input document.
	Total int
	// Written is the number of records emitted to features files.
	Written int
	// Skipped counts dropped records by reason.
	Skipped map[model.SkipReason]int
	// ClampEvents counts vertices moved onto the slide bounds.
	ClampEvents int
	// PerClass counts written records per class id.
	PerClass map[int]int
	// Files lists every file the run created.
	Files []string
}

// SkippedTotal returns the total number of skipped records.
func (s Summary) SkippedTotal() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// Run executes the conversion and writes output files under the given
// path prefix: one {prefix}_type{N}-features.csv and matching
// {prefix}_type{N}-algmeta.json per class, or a header-only
// {prefix}-features.csv pair when nothing survives.
func (c *Converter) Run(prefix string) (Summary, []model.Warning, error) {
	return c.RunContext(context.Background(), prefix)
}

// RunContext is Run with a caller-supplied context bounding the parallel
// transform stage.
func (c *Converter) RunContext(ctx context.Context, prefix string) (Summary, []model.Warning, error) {
	var summary Summary
	if c.err != nil {
		return summary, nil, c.err
	}

	doc, err := c.document()
	if err != nil {
		return summary, nil, err
	}
	meta, err := c.slideMetadata()
	if err != nil {
		return summary, nil, err
	}

	tr, err := transform.New(meta, doc.Resolution())
	if err != nil {
		return summary, nil, err
	}

	norm := geometry.NewNormalizer()
	if c.cfg.RepairDistance > 0 {
		norm.SnapDistance = c.cfg.RepairDistance
	}

	anns := doc.Annotations()
	slideID := c.recordSlideID()
	recordIDs := assignRecordIDs(anns)
	outcomes := transform.MapOrdered(ctx, c.cfg.Workers, anns,
		func(i int, ann model.RawAnnotation) outcome {
			return convertOne(norm, tr, ann, recordIDs[i], slideID)
		})

	summary.Total = doc.TotalRecords()
	summary.Skipped = make(map[model.SkipReason]int)
	summary.PerClass = make(map[int]int)
	warnings := append([]model.Warning(nil), doc.Warnings()...)
	for _, w := range doc.Warnings() {
		summary.Skipped[w.Reason]++
	}

	perClass := make(map[int][]quip.Feature)
	for _, o := range outcomes {
		summary.ClampEvents += o.clampEvents
		if o.skip != model.SkipNone {
			summary.Skipped[o.skip]++
			warnings = append(warnings, o.warning)
			continue
		}
		perClass[o.feature.ClassID] = append(perClass[o.feature.ClassID], o.feature)
		summary.PerClass[o.feature.ClassID]++
		summary.Written++
	}

	if err := c.writeOutputs(prefix, meta, perClass, &summary); err != nil {
		return summary, warnings, err
	}

	// The threshold escalates the exit status, it does not suppress
	// output: whatever survived is on disk before the run fails.
	if c.cfg.MaxSkipRatio > 0 && summary.Total > 0 {
		ratio := float64(summary.SkippedTotal()) / float64(summary.Total)
		if ratio > c.cfg.MaxSkipRatio {
			return summary, warnings, fmt.Errorf("%w: %.2f > %.2f",
				ErrSkipRateExceeded, ratio, c.cfg.MaxSkipRatio)
		}
	}
	return summary, warnings, nil
}

// assignRecordIDs reuses each annotation's source id and gives the rest
// counter values, skipping values a real source id already occupies so
// ids stay collision-free within the run.
func assignRecordIDs(anns []model.RawAnnotation) []string {
	taken := make(map[string]struct{}, len(anns))
	for _, ann := range anns {
		if ann.ID != "" {
			taken[ann.ID] = struct{}{}
		}
	}

	ids := make([]string, len(anns))
	next := 1
	for i, ann := range anns {
		if ann.ID != "" {
			ids[i] = ann.ID
			continue
		}
		for {
			candidate := strconv.Itoa(next)
			next++
			if _, ok := taken[candidate]; !ok {
				ids[i] = candidate
				taken[candidate] = struct{}{}
				break
			}
		}
	}
	return ids
}

// outcome is the per-annotation result of the parallel stage.
type outcome struct {
	feature     quip.Feature
	warning     model.Warning
	clampEvents int
	skip        model.SkipReason
}

// convertOne normalizes and transforms a single annotation.
func convertOne(norm *geometry.Normalizer, tr *transform.Transformer, ann model.RawAnnotation, recordID, slideID string) outcome {
	poly, skip := norm.Normalize(ann.Polygon)
	if skip != model.SkipNone {
		return outcome{
			skip:    skip,
			warning: model.Warning{AnnotationID: ann.ID, Reason: skip, Message: "geometry could not be normalized"},
		}
	}

	res := tr.Apply(poly)
	if res.Skip != model.SkipNone {
		return outcome{
			skip:        res.Skip,
			clampEvents: res.ClampEvents,
			warning:     model.Warning{AnnotationID: ann.ID, Reason: res.Skip, Message: "geometry collapsed inside slide bounds"},
		}
	}

	area := res.Polygon.Area()
	return outcome{
		clampEvents: res.ClampEvents,
		feature: quip.Feature{
			AreaInPixels: area,
			PhysicalSize: area,
			ClassID:      ann.ClassID,
			Polygon:      res.Polygon,
			RecordID:     recordID,
			SlideID:      slideID,
			SourceID:     ann.ID,
		},
	}
}

// document parses the input unless one was injected.
func (c *Converter) document() (*hovernet.Document, error) {
	if c.doc != nil {
		return c.doc, nil
	}
	if c.inputPath == "" {
		return nil, fmt.Errorf("no input specified")
	}
	return hovernet.ParseFile(c.inputPath)
}

// slideMetadata resolves the output geometry: injected metadata wins,
// otherwise the slide file is opened, read and closed.
func (c *Converter) slideMetadata() (model.SlideMetadata, error) {
	if c.hasMeta {
		if err := c.meta.Validate(); err != nil {
			return model.SlideMetadata{}, err
		}
		return c.meta, nil
	}
	if c.slidePath == "" {
		return model.SlideMetadata{}, fmt.Errorf("no slide specified: use Slide or WithSlideMetadata")
	}

	r, err := slide.Open(c.slidePath)
	if err != nil {
		return model.SlideMetadata{}, err
	}
	defer r.Close()
	return r.Metadata(), nil
}

// recordSlideID names the slide in output records: the case id when set,
// otherwise the slide file name without extension.
func (c *Converter) recordSlideID() string {
	if c.caseID != "" {
		return c.caseID
	}
	if c.slidePath == "" {
		return ""
	}
	base := filepath.Base(c.slidePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeOutputs emits the per-class file pairs, or the header-only pair
// when no record survived.
func (c *Converter) writeOutputs(prefix string, meta model.SlideMetadata, perClass map[int][]quip.Feature, summary *Summary) error {
	if dir := filepath.Dir(prefix); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}

	execID := c.executionID
	if execID == "" {
		execID = uuid.NewString()
	}
	ts := c.timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if len(perClass) == 0 {
		return c.writePair(prefix, meta, nil, 0, false, execID, ts, summary)
	}

	classes := make([]int, 0, len(perClass))
	for id := range perClass {
		classes = append(classes, id)
	}
	sort.Ints(classes)
	for _, id := range classes {
		stem := fmt.Sprintf("%s_type%d", prefix, id)
		if err := c.writePair(stem, meta, perClass[id], id, true, execID, ts, summary); err != nil {
			return err
		}
	}
	return nil
}

// writePair writes one features CSV and its algmeta manifest.
func (c *Converter) writePair(stem string, meta model.SlideMetadata, features []quip.Feature, classID int, classed bool, execID string, ts time.Time, summary *Summary) error {
	featuresPath := stem + "-features.csv"
	if _, err := quip.WriteFeaturesFile(featuresPath, features); err != nil {
		return err
	}
	summary.Files = append(summary.Files, featuresPath)

	m := quip.NewManifest(meta)
	m.OutFilePrefix = filepath.Base(stem)
	m.SubjectID = c.subjectID
	m.CaseID = c.caseID
	m.AnalysisID = c.analysisID
	m.AnalysisDesc = c.manifestDesc(classID, classed)
	m.ExecutionID = execID
	m.ConversionTime = ts.UTC().Format(time.RFC3339)

	manifestPath := stem + "-algmeta.json"
	if err := quip.WriteManifestFile(manifestPath, m); err != nil {
		return err
	}
	summary.Files = append(summary.Files, manifestPath)
	return nil
}

// manifestDesc picks the analysis description: the configured text, or a
// class-name fallback when one is known.
func (c *Converter) manifestDesc(classID int, classed bool) string {
	if c.analysisDesc != "" {
		return c.analysisDesc
	}
	if classed {
		if name, ok := c.cfg.ClassNames[classID]; ok {
			return name
		}
	}
	return ""
}
