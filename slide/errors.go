package slide

import "fmt"

// OpenError indicates the slide file is missing, unreadable, or not a
// supported whole-slide container. No output is written after it.
type OpenError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("open slide %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OpenError) Unwrap() error { return e.Err }

// MetadataError indicates the slide container was readable but reported an
// invalid pyramid: non-positive dimensions or downsamples, or ordering
// violations between levels.
type MetadataError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *MetadataError) Error() string {
	return fmt.Sprintf("slide metadata %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MetadataError) Unwrap() error { return e.Err }
