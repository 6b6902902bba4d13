package slide

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	xtiff "golang.org/x/image/tiff"

	"github.com/kaczmarj/convert-hovernet-to-quip/format"
)

// fixtureIFD describes one directory of a little-endian classic TIFF
// fixture built by buildTIFF.
type fixtureIFD struct {
	width, height uint32
	tiled         bool
	subfile       uint32
	description   string
	pixelsPerCM   uint32 // XResolution numerator over denominator 1; 0 = absent
	resUnit       uint16 // 0 = absent
}

func (f fixtureIFD) entryCount() int {
	n := 3 // subfile type, width, height
	if f.description != "" {
		n++
	}
	if f.pixelsPerCM != 0 {
		n++
	}
	if f.resUnit != 0 {
		n++
	}
	if f.tiled {
		n++
	}
	return n
}

// buildTIFF assembles a little-endian classic TIFF containing the given
// directories, with external values (descriptions, rationals) packed after
// the directory chain.
func buildTIFF(t *testing.T, ifds []fixtureIFD) []byte {
	t.Helper()
	le := binary.LittleEndian

	offsets := make([]uint32, len(ifds))
	next := uint32(8)
	for i, f := range ifds {
		offsets[i] = next
		next += uint32(2 + 12*f.entryCount() + 4)
	}

	// Lay out the external data region.
	var extra bytes.Buffer
	extraBase := next
	descOffsets := make([]uint32, len(ifds))
	ratOffsets := make([]uint32, len(ifds))
	for i, f := range ifds {
		if f.description != "" {
			descOffsets[i] = extraBase + uint32(extra.Len())
			extra.WriteString(f.description)
			extra.WriteByte(0)
		}
		if f.pixelsPerCM != 0 {
			ratOffsets[i] = extraBase + uint32(extra.Len())
			var rat [8]byte
			le.PutUint32(rat[0:4], f.pixelsPerCM)
			le.PutUint32(rat[4:8], 1)
			extra.Write(rat[:])
		}
	}

	var out bytes.Buffer
	out.Write([]byte{'I', 'I', 42, 0})
	binary.Write(&out, le, offsets[0])

	writeEntry := func(tag, typ uint16, count, value uint32) {
		binary.Write(&out, le, tag)
		binary.Write(&out, le, typ)
		binary.Write(&out, le, count)
		binary.Write(&out, le, value)
	}

	for i, f := range ifds {
		binary.Write(&out, le, uint16(f.entryCount()))
		writeEntry(tagNewSubfileType, typeLong, 1, f.subfile)
		writeEntry(tagImageWidth, typeLong, 1, f.width)
		writeEntry(tagImageLength, typeLong, 1, f.height)
		if f.description != "" {
			writeEntry(tagImageDescription, typeASCII, uint32(len(f.description)+1), descOffsets[i])
		}
		if f.pixelsPerCM != 0 {
			writeEntry(tagXResolution, typeRational, 1, ratOffsets[i])
		}
		if f.resUnit != 0 {
			writeEntry(tagResolutionUnit, typeShort, 1, uint32(f.resUnit))
		}
		if f.tiled {
			writeEntry(tagTileWidth, typeLong, 1, 256)
		}
		if i == len(ifds)-1 {
			binary.Write(&out, le, uint32(0))
		} else {
			binary.Write(&out, le, offsets[i+1])
		}
	}
	out.Write(extra.Bytes())
	return out.Bytes()
}

func writeFixture(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slide.svs")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============================================================================
// Reader Tests
// ============================================================================

func TestOpenSVSStylePyramid(t *testing.T) {
	data := buildTIFF(t, []fixtureIFD{
		{
			width: 40000, height: 30000, tiled: true,
			description: "Aperio Image Library v12.0.15\r\n40000x30000 (256x256) JPEG/RGB Q=30|AppMag = 40|MPP = 0.2520|",
		},
		{width: 1024, height: 768},                           // thumbnail (stripped)
		{width: 10000, height: 7500, tiled: true},            // level 1
		{width: 2500, height: 1875, tiled: true},             // level 2
		{width: 400, height: 300, subfile: 1},                // label
		{width: 1280, height: 431, subfile: 9},               // macro
	})

	r, err := Open(writeFixture(t, data))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	meta := r.Metadata()
	if meta.LevelCount() != 3 {
		t.Fatalf("LevelCount() = %d, want 3 (tiled IFDs only)", meta.LevelCount())
	}
	if meta.Width() != 40000 || meta.Height() != 30000 {
		t.Errorf("level 0 = %dx%d, want 40000x30000", meta.Width(), meta.Height())
	}

	wantDown := []float64{1, 4, 16}
	for i, want := range wantDown {
		ds, err := meta.Downsample(i)
		if err != nil {
			t.Fatalf("Downsample(%d) error: %v", i, err)
		}
		if math.Abs(ds-want) > 1e-9 {
			t.Errorf("Downsample(%d) = %v, want %v", i, ds, want)
		}
	}

	if math.Abs(meta.MPP-0.252) > 1e-9 {
		t.Errorf("MPP = %v, want 0.252 from Aperio description", meta.MPP)
	}
	if r.Format() != format.TIFFLittleEndian {
		t.Errorf("Format() = %v, want TIFFLittleEndian", r.Format())
	}
}

func TestOpenPlainTIFFWithMetricResolution(t *testing.T) {
	// 40000 pixels per centimeter = 0.25 micron per pixel.
	data := buildTIFF(t, []fixtureIFD{
		{width: 5000, height: 4000, pixelsPerCM: 40000, resUnit: resolutionUnitCentimeter},
		{width: 1250, height: 1000, subfile: 1},
	})

	r, err := Open(writeFixture(t, data))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	meta := r.Metadata()
	if meta.LevelCount() != 2 {
		t.Fatalf("LevelCount() = %d, want 2", meta.LevelCount())
	}
	ds, _ := meta.Downsample(1)
	if math.Abs(ds-4) > 1e-9 {
		t.Errorf("Downsample(1) = %v, want 4", ds)
	}
	if math.Abs(meta.MPP-0.25) > 1e-9 {
		t.Errorf("MPP = %v, want 0.25 from XResolution", meta.MPP)
	}
}

func TestOpenEncodedTIFF(t *testing.T) {
	// A TIFF produced by the x/image encoder must resolve as a
	// single-level pyramid.
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	if err := xtiff.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}

	r, err := Open(writeFixture(t, buf.Bytes()))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer r.Close()

	meta := r.Metadata()
	if meta.LevelCount() != 1 {
		t.Fatalf("LevelCount() = %d, want 1", meta.LevelCount())
	}
	if meta.Width() != 8 || meta.Height() != 6 {
		t.Errorf("level 0 = %dx%d, want 8x6", meta.Width(), meta.Height())
	}
	ds, _ := meta.Downsample(0)
	if ds != 1 {
		t.Errorf("Downsample(0) = %v, want 1", ds)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.svs"))
	if err == nil {
		t.Fatal("Open() should fail for a missing file")
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Errorf("error type = %T, want *OpenError", err)
	}
}

func TestOpenNotATIFF(t *testing.T) {
	path := writeFixture(t, []byte("definitely not a slide"))
	_, err := Open(path)
	if err == nil {
		t.Fatal("Open() should fail for a non-TIFF file")
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Errorf("error type = %T, want *OpenError", err)
	}
}

func TestOpenInvalidDimensions(t *testing.T) {
	data := buildTIFF(t, []fixtureIFD{
		{width: 0, height: 30000},
	})
	_, err := Open(writeFixture(t, data))
	if err == nil {
		t.Fatal("Open() should fail when no IFD has positive dimensions")
	}
	var metaErr *MetadataError
	if !errors.As(err, &metaErr) {
		t.Errorf("error type = %T, want *MetadataError", err)
	}
}

func TestReaderCloseTwice(t *testing.T) {
	data := buildTIFF(t, []fixtureIFD{{width: 100, height: 80}})
	r, err := Open(writeFixture(t, data))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

// ============================================================================
// MPP Resolution Tests
// ============================================================================

func TestResolveMPP(t *testing.T) {
	tests := []struct {
		name string
		dir  ifd
		want float64
	}{
		{
			"aperio description",
			ifd{description: "Aperio|AppMag = 20|MPP = 0.5040|"},
			0.504,
		},
		{
			"description wins over resolution",
			ifd{description: "MPP = 0.25", pixelsPerUnit: 10000, resolutionUnit: resolutionUnitCentimeter},
			0.25,
		},
		{
			"centimeter resolution",
			ifd{pixelsPerUnit: 40000, resolutionUnit: resolutionUnitCentimeter},
			0.25,
		},
		{
			"inch resolution",
			ifd{pixelsPerUnit: 25400, resolutionUnit: resolutionUnitInch},
			1.0,
		},
		{
			"no unit means unknown",
			ifd{pixelsPerUnit: 40000},
			0,
		},
		{"nothing", ifd{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveMPP(tt.dir); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("resolveMPP() = %v, want %v", got, tt.want)
			}
		})
	}
}
