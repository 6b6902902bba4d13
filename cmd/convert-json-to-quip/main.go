// Command convert-json-to-quip converts HoVerNet JSON nucleus predictions
// into QuIP features-and-manifest files.
//
// Usage:
//
//	convert-json-to-quip --slide slide.svs [flags] nuclei.json[.gz] output-prefix
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	quipconvert "github.com/kaczmarj/convert-hovernet-to-quip"
	"github.com/kaczmarj/convert-hovernet-to-quip/config"
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("convert-json-to-quip", flag.ContinueOnError)
	fs.SetOutput(stderr)

	slidePath := fs.String("slide", "", "whole-slide image the annotations belong to (required)")
	subjectID := fs.String("subject-id", "", "subject identifier recorded in the manifest")
	caseID := fs.String("case-id", "", "case identifier; defaults to the slide file name")
	analysisID := fs.String("analysis-id", "", "analysis identifier recorded in the manifest")
	analysisDesc := fs.String("analysis-desc", "", "analysis description recorded in the manifest; defaults to the analysis id")
	configPath := fs.String("config", "", "optional YAML settings file")
	workers := fs.Int("workers", 0, "transform worker count; 0 uses the configured default")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s [flags] nuclei.json[.gz] output-prefix\n\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}
	for _, req := range []struct{ name, value string }{
		{"slide", *slidePath},
		{"subject-id", *subjectID},
		{"case-id", *caseID},
		{"analysis-id", *analysisID},
	} {
		if req.value == "" {
			fmt.Fprintf(stderr, "error: --%s is required\n", req.name)
			return 2
		}
	}
	if *analysisDesc == "" {
		*analysisDesc = *analysisID
	}
	input := fs.Arg(0)
	prefix := sanitizePrefix(fs.Arg(1))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		cfg = loaded
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}

	conv := quipconvert.Open(input).
		Slide(*slidePath).
		SubjectID(*subjectID).
		CaseID(*caseID).
		AnalysisID(*analysisID).
		AnalysisDesc(*analysisDesc).
		WithConfig(cfg)

	summary, warnings, err := conv.Run(prefix)
	for _, w := range warnings {
		fmt.Fprintln(stderr, "warning:", w)
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(stdout, "converted %d of %d annotations (%d skipped, %d clamp events)\n",
		summary.Written, summary.Total, summary.SkippedTotal(), summary.ClampEvents)
	reasons := make([]model.SkipReason, 0, len(summary.Skipped))
	for reason := range summary.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, reason := range reasons {
		p.Fprintf(stdout, "  skipped %d: %s\n", summary.Skipped[reason], reason)
	}
	for _, f := range summary.Files {
		fmt.Fprintln(stdout, "wrote", f)
	}
	return 0
}

// sanitizePrefix strips characters from the output file name that are not
// portable across filesystems. The directory part is left alone.
func sanitizePrefix(prefix string) string {
	dir, base := filepath.Split(prefix)
	base = strings.Map(func(r rune) rune {
		switch r {
		case '\\', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		return r
	}, base)
	return dir + base
}
