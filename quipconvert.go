// Package quipconvert provides a fluent API for converting HoVerNet JSON
// nucleus predictions into QuIP's features-and-manifest record format.
//
// Basic usage:
//
//	summary, warnings, err := quipconvert.Open("nuclei.json.gz").
//	    Slide("TCGA-XX-0001.svs").
//	    CaseID("TCGA-XX-0001").
//	    Run("out/TCGA-XX-0001")
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", quipconvert.FormatWarnings(warnings))
//	}
//
// For advanced use cases, the lower-level hovernet, slide, transform and
// quip packages are also available.
package quipconvert

import (
	"strings"

	"github.com/kaczmarj/convert-hovernet-to-quip/hovernet"
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// Open prepares a conversion of the given HoVerNet JSON file. Gzip
// compression is detected from the file contents, not the file name.
//
// Example:
//
//	summary, warnings, err := quipconvert.Open("nuclei.json").Slide("a.svs").Run("out/a")
func Open(path string) *Converter {
	return &Converter{inputPath: path, cfg: defaultRunConfig()}
}

// FromDocument prepares a conversion of an already-parsed document. This
// is useful when the same input feeds several runs.
func FromDocument(doc *hovernet.Document) *Converter {
	return &Converter{doc: doc, cfg: defaultRunConfig()}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// FormatWarnings renders warnings as a single semicolon-separated string.
func FormatWarnings(warnings []model.Warning) string {
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = w.String()
	}
	return strings.Join(parts, "; ")
}
