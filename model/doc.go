// Package model defines the value types shared by all conversion stages:
// planar geometry primitives, decoded annotation records, slide pyramid
// metadata, and the skip/warning vocabulary used for per-annotation
// failure reporting.
package model
