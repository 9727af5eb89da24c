// Package roi implements the drag-gesture state machine that captures a
// region of interest over the live camera preview.
//
// The selector stores the ROI in intrinsic (native frame) coordinates. The
// display-space overlay rectangle and the normalized ROI sent to the
// detection backend are always derived from that stored value, so the overlay
// stays correct when the preview is resized.
package roi

import (
	"led-mapper/pkg/geometry"
)

// MinDragPixels is the minimum rectangle dimension, in display pixels, below
// which a drag update is ignored. Filters out sub-pixel jitter at the start
// of a gesture.
const MinDragPixels = 5

// Selector captures an axis-aligned ROI from press/drag/release pointer
// events. Not safe for concurrent use; it is driven from the UI event loop.
type Selector struct {
	anchor    geometry.Point2D // display space, valid while dragging
	dragging  bool
	intrinsic *geometry.Rect // stored ROI, intrinsic space; nil when unset
}

// NewSelector creates an empty selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Press begins a drag gesture at a display-space point. Any prior ROI is
// cleared.
func (s *Selector) Press(display geometry.Point2D) {
	s.anchor = display
	s.dragging = true
	s.intrinsic = nil
}

// Drag updates the gesture with the current display-space pointer position.
// The candidate rectangle is the bounding box of the anchor and the current
// point; candidates smaller than MinDragPixels in either dimension are
// ignored, as are all updates while the intrinsic frame size is unknown
// (video metadata not loaded yet).
func (s *Selector) Drag(display geometry.Point2D, displayRect geometry.Rect, intrinsic geometry.Size) {
	if !s.dragging {
		return
	}
	if intrinsic.IsDegenerate() {
		return
	}

	rect := geometry.BoundingBox([]geometry.Point2D{s.anchor, display})
	if rect.Width < MinDragPixels || rect.Height < MinDragPixels {
		return
	}

	ir, err := geometry.DisplayRectToIntrinsic(rect, displayRect, intrinsic)
	if err != nil {
		return
	}
	s.intrinsic = &ir
}

// Release ends the gesture. The last valid rectangle produced during the
// drag is retained; if none survived the minimum-size filter the selector is
// left without an ROI.
func (s *Selector) Release() {
	s.dragging = false
}

// Dragging reports whether a gesture is in progress.
func (s *Selector) Dragging() bool {
	return s.dragging
}

// Clear drops the stored ROI.
func (s *Selector) Clear() {
	s.intrinsic = nil
	s.dragging = false
}

// SetIntrinsicRect replaces the stored ROI directly. Used when restoring a
// session from a mapping file.
func (s *Selector) SetIntrinsicRect(r geometry.Rect) {
	rc := r
	s.intrinsic = &rc
}

// IntrinsicRect returns the stored ROI in intrinsic coordinates.
func (s *Selector) IntrinsicRect() (geometry.Rect, bool) {
	if s.intrinsic == nil {
		return geometry.Rect{}, false
	}
	return *s.intrinsic, true
}

// DisplayRect derives the overlay rectangle for the current display geometry.
// Returns false when no ROI is stored or the conversion is degenerate.
func (s *Selector) DisplayRect(displayRect geometry.Rect, intrinsic geometry.Size) (geometry.Rect, bool) {
	if s.intrinsic == nil {
		return geometry.Rect{}, false
	}
	dr, err := geometry.IntrinsicRectToDisplay(*s.intrinsic, displayRect, intrinsic)
	if err != nil {
		return geometry.Rect{}, false
	}
	return dr, true
}

// Normalized derives the NormalizedROI for the detection backend. Returns
// false when no ROI is stored or the frame size is unknown.
func (s *Selector) Normalized(intrinsic geometry.Size) (geometry.NormalizedROI, bool) {
	if s.intrinsic == nil {
		return geometry.NormalizedROI{}, false
	}
	roi, err := geometry.IntrinsicRectToNormalizedROI(*s.intrinsic, intrinsic)
	if err != nil {
		return geometry.NormalizedROI{}, false
	}
	return roi, true
}
