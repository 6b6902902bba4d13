package quip

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// Manifest is the algmeta JSON QuIP stores next to each features file.
// The field set mirrors what QuIP's ingestion pipeline reads for
// segmentation results; for a whole-slide conversion the tile and patch
// extents equal the image extent.
type Manifest struct {
	InputType        string  `json:"input_type"`
	OtsuRatio        float64 `json:"otsu_ratio"`
	CurvatureWeight  float64 `json:"curvature_weight"`
	MinSize          int     `json:"min_size"`
	MaxSize          int     `json:"max_size"`
	MSKernel         int     `json:"ms_kernel"`
	DeclumpType      int     `json:"declump_type"`
	LevelsetNumIters int     `json:"levelset_num_iters"`
	MPP              float64 `json:"mpp"`
	ImageWidth       int64   `json:"image_width"`
	ImageHeight      int64   `json:"image_height"`
	TileMinX         int64   `json:"tile_minx"`
	TileMinY         int64   `json:"tile_miny"`
	TileWidth        int64   `json:"tile_width"`
	TileHeight       int64   `json:"tile_height"`
	PatchMinX        int64   `json:"patch_minx"`
	PatchMinY        int64   `json:"patch_miny"`
	PatchWidth       int64   `json:"patch_width"`
	PatchHeight      int64   `json:"patch_height"`
	OutputLevel      string  `json:"output_level"`
	OutFilePrefix    string  `json:"out_file_prefix"`
	SubjectID        string  `json:"subject_id"`
	CaseID           string  `json:"case_id"`
	AnalysisID       string  `json:"analysis_id"`
	AnalysisDesc     string  `json:"analysis_desc"`
	ExecutionID      string  `json:"execution_id"`
	ConversionTime   string  `json:"conversion_time"`
}

// NewManifest builds a manifest for a whole-slide analysis over the given
// slide. Callers fill in the identifier and provenance fields afterwards.
func NewManifest(meta model.SlideMetadata) Manifest {
	w, h := meta.Width(), meta.Height()
	return Manifest{
		InputType:   "wsi",
		MPP:         meta.MPP,
		ImageWidth:  w,
		ImageHeight: h,
		TileWidth:   w,
		TileHeight:  h,
		PatchWidth:  w,
		PatchHeight: h,
		OutputLevel: "mask",
	}
}

// WriteManifestFile writes the manifest to path as indented JSON.
func WriteManifestFile(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("writing manifest: %w", err)}
	}
	return nil
}
