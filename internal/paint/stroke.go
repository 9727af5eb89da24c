package paint

import (
	"led-mapper/pkg/geometry"
)

// StrokeBuilder accumulates the in-progress stroke while the pointer is
// down. Points are normalized-space; consecutive duplicates are collapsed so
// a stationary pointer does not inflate the segment list.
type StrokeBuilder struct {
	points []geometry.Point2D
	active bool
}

// Begin starts a stroke at p, discarding any unfinished one.
func (b *StrokeBuilder) Begin(p geometry.Point2D) {
	b.points = b.points[:0]
	b.points = append(b.points, p)
	b.active = true
}

// Extend appends the current pointer position to the stroke. Ignored when no
// stroke is active.
func (b *StrokeBuilder) Extend(p geometry.Point2D) {
	if !b.active {
		return
	}
	if last := b.points[len(b.points)-1]; last == p {
		return
	}
	b.points = append(b.points, p)
}

// Active reports whether a stroke is being built.
func (b *StrokeBuilder) Active() bool {
	return b.active
}

// Points returns a copy of the accumulated points, for live preview
// rendering.
func (b *StrokeBuilder) Points() []geometry.Point2D {
	return append([]geometry.Point2D(nil), b.points...)
}

// Finish ends the stroke and returns its points. The bool is false when the
// stroke has fewer than two points and should be discarded.
func (b *StrokeBuilder) Finish() ([]geometry.Point2D, bool) {
	if !b.active {
		return nil, false
	}
	b.active = false
	if len(b.points) < 2 {
		return nil, false
	}
	points := append([]geometry.Point2D(nil), b.points...)
	b.points = b.points[:0]
	return points, true
}
