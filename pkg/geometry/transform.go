package geometry

import (
	"fmt"
)

// GeometryError reports a conversion that could not be performed because an
// input was degenerate (zero or non-finite dimensions) or violated a space
// invariant. Callers recover locally by skipping the update; this happens
// legitimately before video metadata has loaded.
type GeometryError struct {
	Op     string
	Reason string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s: %s", e.Op, e.Reason)
}

// DisplayToIntrinsic converts a point from display space (on-screen pixels of
// the rendered element, relative to its top-left corner) to intrinsic space
// (native frame pixels). The display rectangle's offset is subtracted first,
// then each axis is scaled by intrinsic/display.
func DisplayToIntrinsic(p Point2D, displayRect Rect, intrinsic Size) (Point2D, error) {
	if err := checkDisplayRect("display to intrinsic", displayRect); err != nil {
		return Point2D{}, err
	}
	if intrinsic.IsDegenerate() {
		return Point2D{}, &GeometryError{Op: "display to intrinsic", Reason: "intrinsic size is degenerate"}
	}
	return Point2D{
		X: (p.X - displayRect.X) * intrinsic.Width / displayRect.Width,
		Y: (p.Y - displayRect.Y) * intrinsic.Height / displayRect.Height,
	}, nil
}

// IntrinsicToDisplay converts a point from intrinsic space to display space.
// Inverse of DisplayToIntrinsic.
func IntrinsicToDisplay(p Point2D, displayRect Rect, intrinsic Size) (Point2D, error) {
	if err := checkDisplayRect("intrinsic to display", displayRect); err != nil {
		return Point2D{}, err
	}
	if intrinsic.IsDegenerate() {
		return Point2D{}, &GeometryError{Op: "intrinsic to display", Reason: "intrinsic size is degenerate"}
	}
	return Point2D{
		X: p.X*displayRect.Width/intrinsic.Width + displayRect.X,
		Y: p.Y*displayRect.Height/intrinsic.Height + displayRect.Y,
	}, nil
}

// IntrinsicToNormalized converts a point from intrinsic pixels to normalized
// [0,1] space by dividing each axis by the intrinsic frame size.
func IntrinsicToNormalized(p Point2D, intrinsic Size) (Point2D, error) {
	if intrinsic.IsDegenerate() {
		return Point2D{}, &GeometryError{Op: "intrinsic to normalized", Reason: "intrinsic size is degenerate"}
	}
	return Point2D{X: p.X / intrinsic.Width, Y: p.Y / intrinsic.Height}, nil
}

// NormalizedToIntrinsic converts a normalized point back to intrinsic pixels.
// Inverse of IntrinsicToNormalized.
func NormalizedToIntrinsic(p Point2D, intrinsic Size) (Point2D, error) {
	if intrinsic.IsDegenerate() {
		return Point2D{}, &GeometryError{Op: "normalized to intrinsic", Reason: "intrinsic size is degenerate"}
	}
	return Point2D{X: p.X * intrinsic.Width, Y: p.Y * intrinsic.Height}, nil
}

// DisplayToNormalized converts a display-space point directly to normalized
// space, composing DisplayToIntrinsic and IntrinsicToNormalized.
func DisplayToNormalized(p Point2D, displayRect Rect, intrinsic Size) (Point2D, error) {
	ip, err := DisplayToIntrinsic(p, displayRect, intrinsic)
	if err != nil {
		return Point2D{}, err
	}
	return IntrinsicToNormalized(ip, intrinsic)
}

// NormalizedToDisplay converts a normalized point directly to display space,
// composing NormalizedToIntrinsic and IntrinsicToDisplay.
func NormalizedToDisplay(p Point2D, displayRect Rect, intrinsic Size) (Point2D, error) {
	ip, err := NormalizedToIntrinsic(p, intrinsic)
	if err != nil {
		return Point2D{}, err
	}
	return IntrinsicToDisplay(ip, displayRect, intrinsic)
}

// DisplayRectToIntrinsic converts a whole rectangle from display to intrinsic
// space.
func DisplayRectToIntrinsic(r Rect, displayRect Rect, intrinsic Size) (Rect, error) {
	tl, err := DisplayToIntrinsic(r.TopLeft(), displayRect, intrinsic)
	if err != nil {
		return Rect{}, err
	}
	br, err := DisplayToIntrinsic(r.BottomRight(), displayRect, intrinsic)
	if err != nil {
		return Rect{}, err
	}
	return Rect{X: tl.X, Y: tl.Y, Width: br.X - tl.X, Height: br.Y - tl.Y}, nil
}

// IntrinsicRectToDisplay converts a whole rectangle from intrinsic to display
// space.
func IntrinsicRectToDisplay(r Rect, displayRect Rect, intrinsic Size) (Rect, error) {
	tl, err := IntrinsicToDisplay(r.TopLeft(), displayRect, intrinsic)
	if err != nil {
		return Rect{}, err
	}
	br, err := IntrinsicToDisplay(r.BottomRight(), displayRect, intrinsic)
	if err != nil {
		return Rect{}, err
	}
	return Rect{X: tl.X, Y: tl.Y, Width: br.X - tl.X, Height: br.Y - tl.Y}, nil
}

// IntrinsicRectToNormalizedROI converts an intrinsic-space rectangle to a
// NormalizedROI, clamping the result into the unit square so that rounding at
// the frame edge cannot produce an out-of-range ROI.
func IntrinsicRectToNormalizedROI(r Rect, intrinsic Size) (NormalizedROI, error) {
	if intrinsic.IsDegenerate() {
		return NormalizedROI{}, &GeometryError{Op: "intrinsic rect to ROI", Reason: "intrinsic size is degenerate"}
	}
	if r.IsEmpty() {
		return NormalizedROI{}, &GeometryError{Op: "intrinsic rect to ROI", Reason: "rectangle is empty"}
	}
	roi := NormalizedROI{
		X: clamp01(r.X / intrinsic.Width),
		Y: clamp01(r.Y / intrinsic.Height),
		W: r.Width / intrinsic.Width,
		H: r.Height / intrinsic.Height,
	}
	if roi.X+roi.W > 1 {
		roi.W = 1 - roi.X
	}
	if roi.Y+roi.H > 1 {
		roi.H = 1 - roi.Y
	}
	return roi, roi.Validate()
}

// NormalizedROIToIntrinsicRect converts a NormalizedROI back to an
// intrinsic-space rectangle.
func NormalizedROIToIntrinsicRect(roi NormalizedROI, intrinsic Size) (Rect, error) {
	if intrinsic.IsDegenerate() {
		return Rect{}, &GeometryError{Op: "ROI to intrinsic rect", Reason: "intrinsic size is degenerate"}
	}
	return Rect{
		X:      roi.X * intrinsic.Width,
		Y:      roi.Y * intrinsic.Height,
		Width:  roi.W * intrinsic.Width,
		Height: roi.H * intrinsic.Height,
	}, nil
}

func checkDisplayRect(op string, displayRect Rect) error {
	if (Size{Width: displayRect.Width, Height: displayRect.Height}).IsDegenerate() {
		return &GeometryError{Op: op, Reason: "display rectangle is degenerate"}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
