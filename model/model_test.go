package model

import (
	"math"
	"testing"
)

// ============================================================================
// Point Tests
// ============================================================================

func TestPointDistance(t *testing.T) {
	tests := []struct {
		name     string
		p1, p2   Point
		expected float64
	}{
		{"same point", Point{0, 0}, Point{0, 0}, 0},
		{"horizontal", Point{0, 0}, Point{3, 0}, 3},
		{"vertical", Point{0, 0}, Point{0, 4}, 4},
		{"diagonal 3-4-5", Point{0, 0}, Point{3, 4}, 5},
		{"negative coords", Point{-1, -1}, Point{2, 3}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.p1.Distance(tt.p2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("Distance() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestPointScale(t *testing.T) {
	p := Point{10, 20}.Scale(4)
	if p.X != 40 || p.Y != 80 {
		t.Errorf("Scale() = %+v, want {40, 80}", p)
	}
}

// ============================================================================
// Ring Tests
// ============================================================================

func TestRingArea(t *testing.T) {
	tests := []struct {
		name string
		ring Ring
		want float64
	}{
		{"empty", Ring{}, 0},
		{"two vertices", Ring{{0, 0}, {1, 1}}, 0},
		{"unit square ccw", Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1},
		{"unit square cw", Ring{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, 1},
		{"triangle", Ring{{0, 0}, {4, 0}, {0, 3}}, 6},
		{"explicitly closed square", Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ring.Area(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Area() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRingDistinctVertices(t *testing.T) {
	tests := []struct {
		name string
		ring Ring
		want int
	}{
		{"empty", Ring{}, 0},
		{"single", Ring{{1, 1}}, 1},
		{"triangle", Ring{{0, 0}, {1, 0}, {0, 1}}, 3},
		{"consecutive duplicates", Ring{{0, 0}, {0, 0}, {1, 0}, {1, 0}, {0, 1}}, 3},
		{"explicitly closed", Ring{{0, 0}, {1, 0}, {0, 1}, {0, 0}}, 3},
		{"all identical", Ring{{5, 5}, {5, 5}, {5, 5}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ring.DistinctVertices(); got != tt.want {
				t.Errorf("DistinctVertices() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRingClone(t *testing.T) {
	orig := Ring{{1, 2}, {3, 4}}
	clone := orig.Clone()
	clone[0].X = 99
	if orig[0].X != 1 {
		t.Error("Clone() did not copy vertices")
	}
	if Ring(nil).Clone() != nil {
		t.Error("Clone() of nil ring should be nil")
	}
}

// ============================================================================
// Polygon Tests
// ============================================================================

func TestPolygonArea(t *testing.T) {
	tests := []struct {
		name    string
		polygon Polygon
		want    float64
	}{
		{"empty", Polygon{}, 0},
		{
			"no holes",
			Polygon{Rings: []Ring{{{0, 0}, {4, 0}, {4, 4}, {0, 4}}}},
			16,
		},
		{
			"with hole",
			Polygon{Rings: []Ring{
				{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
				{{1, 1}, {2, 1}, {2, 2}, {1, 2}},
			}},
			15,
		},
		{
			"hole larger than exterior clamps to zero",
			Polygon{Rings: []Ring{
				{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
				{{0, 0}, {4, 0}, {4, 4}, {0, 4}},
			}},
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.polygon.Area(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Area() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolygonBounds(t *testing.T) {
	p := Polygon{Rings: []Ring{
		{{2, 3}, {10, 3}, {10, 8}, {2, 8}},
		{{4, 4}, {5, 4}, {5, 5}},
	}}
	min, max := p.Bounds()
	if min.X != 2 || min.Y != 3 || max.X != 10 || max.Y != 8 {
		t.Errorf("Bounds() = %+v, %+v, want {2 3}, {10 8}", min, max)
	}
}

func TestPolygonAccessors(t *testing.T) {
	empty := Polygon{}
	if !empty.IsEmpty() {
		t.Error("IsEmpty() = false for empty polygon")
	}
	if empty.Exterior() != nil {
		t.Error("Exterior() != nil for empty polygon")
	}

	p := Polygon{Rings: []Ring{
		{{0, 0}, {4, 0}, {4, 4}},
		{{1, 1}, {2, 1}, {2, 2}},
	}}
	if p.IsEmpty() {
		t.Error("IsEmpty() = true for non-empty polygon")
	}
	if len(p.Exterior()) != 3 {
		t.Errorf("Exterior() has %d vertices, want 3", len(p.Exterior()))
	}
	if len(p.Holes()) != 1 {
		t.Errorf("Holes() has %d rings, want 1", len(p.Holes()))
	}
}

// ============================================================================
// SlideMetadata Tests
// ============================================================================

func validMetadata() SlideMetadata {
	return SlideMetadata{
		Levels: []Level{
			{Width: 40000, Height: 30000, Downsample: 1},
			{Width: 10000, Height: 7500, Downsample: 4},
			{Width: 2500, Height: 1875, Downsample: 16},
		},
		MPP: 0.25,
	}
}

func TestSlideMetadataAccessors(t *testing.T) {
	m := validMetadata()
	if m.LevelCount() != 3 {
		t.Errorf("LevelCount() = %d, want 3", m.LevelCount())
	}
	if m.Width() != 40000 || m.Height() != 30000 {
		t.Errorf("level 0 dims = %dx%d, want 40000x30000", m.Width(), m.Height())
	}

	ds, err := m.Downsample(1)
	if err != nil {
		t.Fatalf("Downsample(1) error: %v", err)
	}
	if ds != 4 {
		t.Errorf("Downsample(1) = %v, want 4", ds)
	}

	if _, err := m.Downsample(3); err == nil {
		t.Error("Downsample(3) should fail for 3-level pyramid")
	}
	if _, err := m.Downsample(-1); err == nil {
		t.Error("Downsample(-1) should fail")
	}
}

func TestSlideMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SlideMetadata)
		wantErr bool
	}{
		{"valid", func(m *SlideMetadata) {}, false},
		{"no levels", func(m *SlideMetadata) { m.Levels = nil }, true},
		{"zero width", func(m *SlideMetadata) { m.Levels[0].Width = 0 }, true},
		{"negative height", func(m *SlideMetadata) { m.Levels[1].Height = -5 }, true},
		{"zero downsample", func(m *SlideMetadata) { m.Levels[2].Downsample = 0 }, true},
		{"growing dimensions", func(m *SlideMetadata) { m.Levels[2].Width = 50000 }, true},
		{"shrinking downsample", func(m *SlideMetadata) { m.Levels[2].Downsample = 2 }, true},
		{"negative mpp", func(m *SlideMetadata) { m.MPP = -0.25 }, true},
		{"unknown mpp ok", func(m *SlideMetadata) { m.MPP = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMetadata()
			tt.mutate(&m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ============================================================================
// SkipReason / Warning Tests
// ============================================================================

func TestSkipReasonString(t *testing.T) {
	tests := []struct {
		reason SkipReason
		want   string
	}{
		{SkipNone, "none"},
		{SkipMissingGeometry, "missing-geometry"},
		{SkipTooFewVertices, "too-few-vertices"},
		{SkipRepairFailed, "repair-failed"},
		{SkipDegenerateAfterClamp, "degenerate-after-clamp"},
		{SkipReason(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.reason.String(); got != tt.want {
			t.Errorf("SkipReason(%d).String() = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestWarningString(t *testing.T) {
	w := Warning{AnnotationID: "17", Reason: SkipRepairFailed, Message: "still self-intersecting"}
	want := "[repair-failed] annotation 17: still self-intersecting"
	if got := w.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	w = Warning{Reason: SkipMissingGeometry, Message: "no contour"}
	want = "[missing-geometry] no contour"
	if got := w.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
