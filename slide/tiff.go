package slide

import (
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kaczmarj/convert-hovernet-to-quip/format"
	"github.com/kaczmarj/convert-hovernet-to-quip/model"
)

// TIFF tag and field type constants, limited to what the resolver reads.
const (
	tagNewSubfileType   = 254
	tagImageWidth       = 256
	tagImageLength      = 257
	tagImageDescription = 270
	tagXResolution      = 282
	tagResolutionUnit   = 296
	tagTileWidth        = 322

	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
	typeLong8    = 16

	resolutionUnitInch       = 2
	resolutionUnitCentimeter = 3
)

// maxIFDs guards against cyclic IFD chains in corrupt files.
const maxIFDs = 256

// mppPattern extracts the micron-per-pixel token Aperio embeds in the
// level-0 ImageDescription, e.g. "...|MPP = 0.2520|...".
var mppPattern = regexp.MustCompile(`MPP\s*=\s*([0-9]*\.?[0-9]+)`)

// ifd holds the fields of one image file directory that matter for
// pyramid metadata.
type ifd struct {
	width          int64
	height         int64
	tiled          bool
	subfileType    uint64
	description    string
	pixelsPerUnit  float64
	resolutionUnit uint16
}

// parseTIFF walks the IFD chain of a classic TIFF or BigTIFF and returns
// one entry per directory in file order.
func parseTIFF(r io.ReaderAt, f format.SlideFormat) ([]ifd, error) {
	var order binary.ByteOrder = binary.LittleEndian
	if f.BigEndian() {
		order = binary.BigEndian
	}

	var offset uint64
	if f.BigTIFF() {
		header := make([]byte, 16)
		if _, err := r.ReadAt(header, 0); err != nil {
			return nil, fmt.Errorf("reading BigTIFF header: %w", err)
		}
		if order.Uint16(header[4:6]) != 8 {
			return nil, fmt.Errorf("unsupported BigTIFF offset size")
		}
		offset = order.Uint64(header[8:16])
	} else {
		header := make([]byte, 8)
		if _, err := r.ReadAt(header, 0); err != nil {
			return nil, fmt.Errorf("reading TIFF header: %w", err)
		}
		offset = uint64(order.Uint32(header[4:8]))
	}

	var dirs []ifd
	for offset != 0 {
		if len(dirs) >= maxIFDs {
			return nil, fmt.Errorf("more than %d IFDs, assuming corrupt chain", maxIFDs)
		}
		dir, next, err := parseIFD(r, order, f.BigTIFF(), offset)
		if err != nil {
			return nil, fmt.Errorf("IFD %d at offset %d: %w", len(dirs), offset, err)
		}
		dirs = append(dirs, dir)
		offset = next
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no IFDs found")
	}
	return dirs, nil
}

// parseIFD reads one directory and the offset of the next.
func parseIFD(r io.ReaderAt, order binary.ByteOrder, big bool, offset uint64) (ifd, uint64, error) {
	entrySize := 12
	countSize := 2
	nextSize := 4
	if big {
		entrySize = 20
		countSize = 8
		nextSize = 8
	}

	countBuf := make([]byte, countSize)
	if _, err := r.ReadAt(countBuf, int64(offset)); err != nil {
		return ifd{}, 0, fmt.Errorf("reading entry count: %w", err)
	}
	var count uint64
	if big {
		count = order.Uint64(countBuf)
	} else {
		count = uint64(order.Uint16(countBuf))
	}
	if count > 4096 {
		return ifd{}, 0, fmt.Errorf("implausible entry count %d", count)
	}

	body := make([]byte, int(count)*entrySize+nextSize)
	if _, err := r.ReadAt(body, int64(offset)+int64(countSize)); err != nil {
		return ifd{}, 0, fmt.Errorf("reading %d entries: %w", count, err)
	}

	var dir ifd
	for i := 0; i < int(count); i++ {
		entry := body[i*entrySize : (i+1)*entrySize]
		if err := applyEntry(&dir, r, order, big, entry); err != nil {
			return ifd{}, 0, err
		}
	}

	var next uint64
	tail := body[int(count)*entrySize:]
	if big {
		next = order.Uint64(tail)
	} else {
		next = uint64(order.Uint32(tail))
	}
	return dir, next, nil
}

// applyEntry decodes one directory entry into dir, ignoring tags the
// resolver does not use.
func applyEntry(dir *ifd, r io.ReaderAt, order binary.ByteOrder, big bool, entry []byte) error {
	tag := order.Uint16(entry[0:2])
	typ := order.Uint16(entry[2:4])

	var count uint64
	var value []byte
	if big {
		count = order.Uint64(entry[4:12])
		value = entry[12:20]
	} else {
		count = uint64(order.Uint32(entry[4:8]))
		value = entry[8:12]
	}

	switch tag {
	case tagNewSubfileType:
		v, err := integerValue(order, typ, value)
		if err != nil {
			return fmt.Errorf("tag %d: %w", tag, err)
		}
		dir.subfileType = v
	case tagImageWidth:
		v, err := integerValue(order, typ, value)
		if err != nil {
			return fmt.Errorf("tag %d: %w", tag, err)
		}
		dir.width = int64(v)
	case tagImageLength:
		v, err := integerValue(order, typ, value)
		if err != nil {
			return fmt.Errorf("tag %d: %w", tag, err)
		}
		dir.height = int64(v)
	case tagTileWidth:
		dir.tiled = true
	case tagImageDescription:
		if typ != typeASCII {
			return nil
		}
		s, err := asciiValue(r, order, big, count, value)
		if err != nil {
			return fmt.Errorf("tag %d: %w", tag, err)
		}
		dir.description = s
	case tagXResolution:
		if typ != typeRational {
			return nil
		}
		v, err := rationalValue(r, order, big, value)
		if err != nil {
			return fmt.Errorf("tag %d: %w", tag, err)
		}
		dir.pixelsPerUnit = v
	case tagResolutionUnit:
		v, err := integerValue(order, typ, value)
		if err != nil {
			return fmt.Errorf("tag %d: %w", tag, err)
		}
		dir.resolutionUnit = uint16(v)
	}
	return nil
}

// integerValue reads an inline SHORT, LONG, or LONG8 value. TIFF stores
// inline values left-justified in the value field in the file's byte order.
func integerValue(order binary.ByteOrder, typ uint16, value []byte) (uint64, error) {
	switch typ {
	case typeShort:
		return uint64(order.Uint16(value[0:2])), nil
	case typeLong:
		return uint64(order.Uint32(value[0:4])), nil
	case typeLong8:
		if len(value) < 8 {
			return 0, fmt.Errorf("LONG8 value in classic TIFF")
		}
		return order.Uint64(value[0:8]), nil
	default:
		return 0, fmt.Errorf("unexpected integer field type %d", typ)
	}
}

// asciiValue reads an ASCII field, inline when it fits the value field,
// otherwise from its offset.
func asciiValue(r io.ReaderAt, order binary.ByteOrder, big bool, count uint64, value []byte) (string, error) {
	if count == 0 {
		return "", nil
	}
	if count > 1<<20 {
		return "", fmt.Errorf("implausible ASCII length %d", count)
	}

	inline := uint64(4)
	if big {
		inline = 8
	}
	var raw []byte
	if count <= inline {
		raw = value[:count]
	} else {
		var offset uint64
		if big {
			offset = order.Uint64(value)
		} else {
			offset = uint64(order.Uint32(value))
		}
		raw = make([]byte, count)
		if _, err := r.ReadAt(raw, int64(offset)); err != nil {
			return "", fmt.Errorf("reading ASCII value: %w", err)
		}
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// rationalValue reads a RATIONAL field. The 8-byte value is inline only in
// BigTIFF; classic TIFF always stores it at an offset.
func rationalValue(r io.ReaderAt, order binary.ByteOrder, big bool, value []byte) (float64, error) {
	var raw []byte
	if big {
		raw = value[:8]
	} else {
		offset := uint64(order.Uint32(value))
		raw = make([]byte, 8)
		if _, err := r.ReadAt(raw, int64(offset)); err != nil {
			return 0, fmt.Errorf("reading RATIONAL value: %w", err)
		}
	}
	num := order.Uint32(raw[0:4])
	den := order.Uint32(raw[4:8])
	if den == 0 {
		return 0, nil
	}
	return float64(num) / float64(den), nil
}

// metadataFromIFDs selects the pyramid levels from the directory list and
// assembles validated slide metadata.
//
// Tiled directories are the pyramid in SVS-style slides; stripped
// directories there are the thumbnail, label, and macro images. When no
// directory is tiled (plain pyramidal or single-image TIFF), every full-
// or reduced-resolution directory counts as a level.
func metadataFromIFDs(dirs []ifd) (model.SlideMetadata, error) {
	var levels []ifd
	anyTiled := false
	for _, d := range dirs {
		if d.tiled {
			anyTiled = true
			break
		}
	}
	for _, d := range dirs {
		if d.width <= 0 || d.height <= 0 {
			continue
		}
		if anyTiled {
			if d.tiled {
				levels = append(levels, d)
			}
		} else if d.subfileType&^1 == 0 {
			levels = append(levels, d)
		}
	}
	if len(levels) == 0 {
		return model.SlideMetadata{}, fmt.Errorf("no pyramid levels among %d IFDs", len(dirs))
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].width > levels[j].width
	})

	meta := model.SlideMetadata{
		Levels: make([]model.Level, len(levels)),
		MPP:    resolveMPP(levels[0]),
	}
	base := levels[0]
	for i, lv := range levels {
		meta.Levels[i] = model.Level{
			Width:      lv.width,
			Height:     lv.height,
			Downsample: float64(base.width) / float64(lv.width),
		}
	}
	if err := meta.Validate(); err != nil {
		return model.SlideMetadata{}, err
	}
	return meta, nil
}

// resolveMPP derives the level-0 micron-per-pixel value. The Aperio
// ImageDescription token wins; otherwise a metric XResolution is converted.
// Returns 0 when the slide carries no usable physical resolution.
func resolveMPP(base ifd) float64 {
	if m := mppPattern.FindStringSubmatch(base.description); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return v
		}
	}
	if base.pixelsPerUnit > 0 {
		switch base.resolutionUnit {
		case resolutionUnitCentimeter:
			return 10000 / base.pixelsPerUnit
		case resolutionUnitInch:
			return 25400 / base.pixelsPerUnit
		}
	}
	return 0
}
