package model

import "fmt"

// Level describes one level of a slide pyramid.
type Level struct {
	Width  int64
	Height int64
	// Downsample is the ratio of level-0 pixel size to this level's pixel
	// size. Level 0 always has Downsample 1.0.
	Downsample float64
}

// SlideMetadata holds the pyramid geometry of a whole-slide image. It is
// resolved once per conversion run and immutable thereafter.
type SlideMetadata struct {
	// Levels is ordered from full resolution (level 0) down.
	Levels []Level
	// MPP is the micron-per-pixel value at level 0, or 0 when the slide
	// does not report a physical resolution.
	MPP float64
}

// LevelCount returns the number of pyramid levels.
func (m SlideMetadata) LevelCount() int {
	return len(m.Levels)
}

// Width returns the level-0 width in pixels.
func (m SlideMetadata) Width() int64 {
	if len(m.Levels) == 0 {
		return 0
	}
	return m.Levels[0].Width
}

// Height returns the level-0 height in pixels.
func (m SlideMetadata) Height() int64 {
	if len(m.Levels) == 0 {
		return 0
	}
	return m.Levels[0].Height
}

// Downsample returns the downsample factor for the given level.
func (m SlideMetadata) Downsample(level int) (float64, error) {
	if level < 0 || level >= len(m.Levels) {
		return 0, fmt.Errorf("level %d out of range (0-%d)", level, len(m.Levels)-1)
	}
	return m.Levels[level].Downsample, nil
}

// Validate checks the pyramid invariants: at least one level, positive
// dimensions and downsamples, dimensions non-increasing and downsamples
// non-decreasing with level.
func (m SlideMetadata) Validate() error {
	if len(m.Levels) == 0 {
		return fmt.Errorf("no pyramid levels")
	}
	for i, lv := range m.Levels {
		if lv.Width <= 0 || lv.Height <= 0 {
			return fmt.Errorf("level %d has non-positive dimensions %dx%d", i, lv.Width, lv.Height)
		}
		if lv.Downsample <= 0 {
			return fmt.Errorf("level %d has non-positive downsample %g", i, lv.Downsample)
		}
		if i == 0 {
			continue
		}
		prev := m.Levels[i-1]
		if lv.Width > prev.Width || lv.Height > prev.Height {
			return fmt.Errorf("level %d dimensions %dx%d exceed level %d (%dx%d)",
				i, lv.Width, lv.Height, i-1, prev.Width, prev.Height)
		}
		if lv.Downsample < prev.Downsample {
			return fmt.Errorf("level %d downsample %g below level %d (%g)",
				i, lv.Downsample, i-1, prev.Downsample)
		}
	}
	if m.MPP < 0 {
		return fmt.Errorf("negative micron-per-pixel value %g", m.MPP)
	}
	return nil
}
