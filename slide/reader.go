// Package slide resolves whole-slide image pyramid metadata: base-level
// pixel dimensions, the pyramid level count, each level's downsample
// factor, and the physical resolution when the slide reports one. The
// slide file is never modified.
package slide

import (
	"bufio"
	"fmt"
	"io"
	"os"

	xtiff "golang.org/x/image/tiff"

	"github.com/kaczmarj/convert-hovernet-to-quip/format"
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// Reader owns an open slide file and its resolved pyramid metadata.
type Reader struct {
	file *os.File
	path string

	format format.SlideFormat
	meta   model.SlideMetadata
}

// Open opens a whole-slide image and resolves its pyramid metadata.
// The returned Reader must be closed when done.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}

	reader, err := NewReader(file, path)
	if err != nil {
		file.Close()
		return nil, err
	}
	return reader, nil
}

// NewReader resolves pyramid metadata from an already-opened slide file.
// The Reader takes ownership of the file.
func NewReader(file *os.File, path string) (*Reader, error) {
	slideFormat, err := format.DetectSlideFromReader(file)
	if err != nil {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("reading magic bytes: %w", err)}
	}
	if slideFormat == format.UnknownSlide {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("not a TIFF-based slide")}
	}

	reader := &Reader{file: file, path: path, format: slideFormat}

	dirs, parseErr := parseTIFF(file, slideFormat)
	if parseErr != nil {
		// Exotic layouts our walker cannot handle may still decode as a
		// plain single-image TIFF.
		meta, fbErr := fallbackSingleLevel(file)
		if fbErr != nil {
			return nil, &OpenError{Path: path, Err: parseErr}
		}
		reader.meta = meta
		return reader, nil
	}

	meta, err := metadataFromIFDs(dirs)
	if err != nil {
		return nil, &MetadataError{Path: path, Err: err}
	}
	reader.meta = meta
	return reader, nil
}

// Metadata returns the resolved pyramid metadata.
func (r *Reader) Metadata() model.SlideMetadata {
	return r.meta
}

// Format returns the detected slide container format.
func (r *Reader) Format() format.SlideFormat {
	return r.format
}

// Path returns the slide file path.
func (r *Reader) Path() string {
	return r.path
}

// Close closes the slide file. It is safe to call Close multiple times.
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// fallbackSingleLevel treats the slide as a single-level pyramid using the
// stdlib-compatible TIFF decoder's image config.
func fallbackSingleLevel(file *os.File) (model.SlideMetadata, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return model.SlideMetadata{}, err
	}
	cfg, err := xtiff.DecodeConfig(bufio.NewReader(file))
	if err != nil {
		return model.SlideMetadata{}, err
	}
	meta := model.SlideMetadata{
		Levels: []model.Level{{
			Width:      int64(cfg.Width),
			Height:     int64(cfg.Height),
			Downsample: 1,
		}},
	}
	if err := meta.Validate(); err != nil {
		return model.SlideMetadata{}, err
	}
	return meta, nil
}
