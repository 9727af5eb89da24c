package roi

import (
	"testing"

	"led-mapper/pkg/geometry"
)

var (
	displayRect = geometry.NewRect(0, 0, 640, 360)
	intrinsic   = geometry.NewSize(1280, 720)
)

func TestDragCapturesROI(t *testing.T) {
	s := NewSelector()

	s.Press(geometry.NewPoint2D(100, 100))
	s.Drag(geometry.NewPoint2D(200, 150), displayRect, intrinsic)
	s.Release()

	ir, ok := s.IntrinsicRect()
	if !ok {
		t.Fatal("expected a stored ROI")
	}
	// Display is half the intrinsic resolution, so coordinates double.
	want := geometry.NewRect(200, 200, 200, 100)
	if ir != want {
		t.Fatalf("intrinsic ROI = %+v, want %+v", ir, want)
	}
}

func TestDragBelowMinimumIgnored(t *testing.T) {
	s := NewSelector()

	s.Press(geometry.NewPoint2D(100, 100))
	s.Drag(geometry.NewPoint2D(103, 200), displayRect, intrinsic) // width 3 < 5
	s.Release()

	if _, ok := s.IntrinsicRect(); ok {
		t.Fatal("sub-threshold drag must not produce an ROI")
	}
}

func TestDragRetainsLastValidRect(t *testing.T) {
	s := NewSelector()

	s.Press(geometry.NewPoint2D(100, 100))
	s.Drag(geometry.NewPoint2D(300, 300), displayRect, intrinsic)
	// Pointer returns close to the anchor; the candidate is too small and the
	// previous rectangle must survive.
	s.Drag(geometry.NewPoint2D(102, 101), displayRect, intrinsic)
	s.Release()

	ir, ok := s.IntrinsicRect()
	if !ok {
		t.Fatal("expected the earlier valid ROI to be retained")
	}
	want := geometry.NewRect(200, 200, 400, 400)
	if ir != want {
		t.Fatalf("intrinsic ROI = %+v, want %+v", ir, want)
	}
}

func TestPressClearsPriorROI(t *testing.T) {
	s := NewSelector()

	s.Press(geometry.NewPoint2D(100, 100))
	s.Drag(geometry.NewPoint2D(200, 200), displayRect, intrinsic)
	s.Release()

	s.Press(geometry.NewPoint2D(10, 10))
	if _, ok := s.IntrinsicRect(); ok {
		t.Fatal("press must clear the previous ROI")
	}
}

func TestUpdatesIgnoredWithoutIntrinsicSize(t *testing.T) {
	s := NewSelector()

	s.Press(geometry.NewPoint2D(100, 100))
	s.Drag(geometry.NewPoint2D(300, 300), displayRect, geometry.Size{})
	s.Release()

	if _, ok := s.IntrinsicRect(); ok {
		t.Fatal("drag with unknown frame size must be a silent no-op")
	}
}

func TestDragReversedAnchor(t *testing.T) {
	// Dragging up-left of the anchor still yields a positive rectangle.
	s := NewSelector()

	s.Press(geometry.NewPoint2D(200, 150))
	s.Drag(geometry.NewPoint2D(100, 100), displayRect, intrinsic)
	s.Release()

	ir, ok := s.IntrinsicRect()
	if !ok {
		t.Fatal("expected a stored ROI")
	}
	want := geometry.NewRect(200, 200, 200, 100)
	if ir != want {
		t.Fatalf("intrinsic ROI = %+v, want %+v", ir, want)
	}
}

func TestDisplayRectTracksResize(t *testing.T) {
	s := NewSelector()

	s.Press(geometry.NewPoint2D(100, 100))
	s.Drag(geometry.NewPoint2D(200, 150), displayRect, intrinsic)
	s.Release()

	// Same intrinsic ROI rendered into a resized preview.
	bigger := geometry.NewRect(0, 0, 1280, 720)
	dr, ok := s.DisplayRect(bigger, intrinsic)
	if !ok {
		t.Fatal("expected a derived display rect")
	}
	want := geometry.NewRect(200, 200, 200, 100)
	if dr != want {
		t.Fatalf("display ROI = %+v, want %+v", dr, want)
	}
}

func TestNormalized(t *testing.T) {
	s := NewSelector()
	s.SetIntrinsicRect(geometry.NewRect(128, 72, 640, 360))

	roi, ok := s.Normalized(intrinsic)
	if !ok {
		t.Fatal("expected a normalized ROI")
	}
	if err := roi.Validate(); err != nil {
		t.Fatalf("derived ROI must validate: %v", err)
	}
	if roi.X != 0.1 || roi.W != 0.5 {
		t.Fatalf("normalized ROI = %+v", roi)
	}

	if _, ok := s.Normalized(geometry.Size{}); ok {
		t.Fatal("normalization without frame size must fail")
	}
}
