// Package format provides magic-byte detection for the converter's two
// inputs: the annotation document (plain or gzip-compressed JSON) and the
// whole-slide image container.
package format

import (
	"bytes"
	"io"
	"os"
)

// Encoding represents the detected encoding of an annotation document.
type Encoding int

const (
	// UnknownEncoding indicates an unrecognized byte stream.
	UnknownEncoding Encoding = iota
	// JSON indicates an uncompressed JSON document.
	JSON
	// GzipJSON indicates a gzip-compressed document.
	GzipJSON
)

// String returns the string representation of the encoding.
func (e Encoding) String() string {
	switch e {
	case JSON:
		return "JSON"
	case GzipJSON:
		return "gzip"
	default:
		return "Unknown"
	}
}

// SlideFormat represents a supported whole-slide image container.
type SlideFormat int

const (
	// UnknownSlide indicates an unrecognized container.
	UnknownSlide SlideFormat = iota
	// TIFFLittleEndian indicates a classic little-endian TIFF (includes
	// Aperio SVS, which is a tiled TIFF).
	TIFFLittleEndian
	// TIFFBigEndian indicates a classic big-endian TIFF.
	TIFFBigEndian
	// BigTIFFLittleEndian indicates a little-endian BigTIFF.
	BigTIFFLittleEndian
	// BigTIFFBigEndian indicates a big-endian BigTIFF.
	BigTIFFBigEndian
)

// String returns the string representation of the slide format.
func (f SlideFormat) String() string {
	switch f {
	case TIFFLittleEndian:
		return "TIFF (little-endian)"
	case TIFFBigEndian:
		return "TIFF (big-endian)"
	case BigTIFFLittleEndian:
		return "BigTIFF (little-endian)"
	case BigTIFFBigEndian:
		return "BigTIFF (big-endian)"
	default:
		return "Unknown"
	}
}

// BigEndian reports whether the container uses big-endian byte order.
func (f SlideFormat) BigEndian() bool {
	return f == TIFFBigEndian || f == BigTIFFBigEndian
}

// BigTIFF reports whether the container uses 8-byte BigTIFF offsets.
func (f SlideFormat) BigTIFF() bool {
	return f == BigTIFFLittleEndian || f == BigTIFFBigEndian
}

// DetectEncoding determines the document encoding from its leading bytes.
// Gzip detection checks the 0x1f 0x8b magic pair; anything whose first
// non-whitespace byte opens a JSON value is treated as JSON.
func DetectEncoding(data []byte) Encoding {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return GzipJSON
	}

	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{', '[', '"':
			return JSON
		default:
			return UnknownEncoding
		}
	}
	return UnknownEncoding
}

// DetectEncodingFromFile reads the leading bytes of path and detects the
// document encoding.
func DetectEncodingFromFile(path string) (Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return UnknownEncoding, err
	}
	defer f.Close()

	magic := make([]byte, 16)
	n, err := f.Read(magic)
	if err != nil && err != io.EOF {
		return UnknownEncoding, err
	}
	return DetectEncoding(magic[:n]), nil
}

// DetectSlide determines the slide container format from its leading bytes.
func DetectSlide(data []byte) SlideFormat {
	if len(data) < 4 {
		return UnknownSlide
	}

	switch {
	case bytes.Equal(data[:4], []byte{'I', 'I', 42, 0}):
		return TIFFLittleEndian
	case bytes.Equal(data[:4], []byte{'M', 'M', 0, 42}):
		return TIFFBigEndian
	case bytes.Equal(data[:4], []byte{'I', 'I', 43, 0}):
		return BigTIFFLittleEndian
	case bytes.Equal(data[:4], []byte{'M', 'M', 0, 43}):
		return BigTIFFBigEndian
	default:
		return UnknownSlide
	}
}

// DetectSlideFromReader reads the container magic from r and detects the
// slide format.
func DetectSlideFromReader(r io.ReaderAt) (SlideFormat, error) {
	magic := make([]byte, 4)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return UnknownSlide, err
	}
	return DetectSlide(magic[:n]), nil
}
