package paint

import (
	"image/color"
	"math"
	"reflect"
	"testing"

	"led-mapper/internal/detector"
	"led-mapper/pkg/geometry"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

func pt(x, y float64) geometry.Point2D {
	return geometry.Point2D{X: x, Y: y}
}

func TestThresholdFallbackSingleLED(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{pt(0.5, 0.5)})

	if got := e.Threshold(); got != FallbackThreshold {
		t.Fatalf("threshold = %v, want fallback %v", got, FallbackThreshold)
	}
}

func TestThresholdFallbackAllSentinels(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{pt(0, 0), pt(0, 0), pt(0, 0)})

	if got := e.Threshold(); got != FallbackThreshold {
		t.Fatalf("threshold = %v, want fallback %v", got, FallbackThreshold)
	}
	if math.IsNaN(e.Threshold()) {
		t.Fatal("threshold must never be NaN")
	}
}

func TestThresholdEvenSpacing(t *testing.T) {
	// LEDs 0.1 apart in a row: every neighbor distance is a multiple of 0.1,
	// the mean of ±1/±2 offsets is 0.15 at interior LEDs; halving bounds the
	// threshold near half the strip pitch.
	e := NewEngine()
	var leds []geometry.Point2D
	for i := 0; i < 10; i++ {
		leds = append(leds, pt(0.05+float64(i)*0.1, 0.5))
	}
	e.SetLEDs(leds)

	got := e.Threshold()
	if got < 0.05 || got > 0.075 {
		t.Fatalf("threshold = %v, want within [0.05, 0.075]", got)
	}
}

func TestThresholdSkipsSentinels(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{
		pt(0.1, 0.5), pt(0, 0), pt(0.3, 0.5), pt(0, 0), pt(0.5, 0.5),
	})

	// Valid LEDs are 0.2 apart by adjacency among the valid subsequence.
	got := e.Threshold()
	if math.IsNaN(got) || got <= 0 {
		t.Fatalf("threshold = %v", got)
	}
}

func TestStrokePaintsNearbyLEDsOnly(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{
		pt(0.1, 0.1), // near the stroke
		pt(0, 0),     // sentinel, never painted
		pt(0.9, 0.9), // far away
	})

	if _, ok := e.AddLine([]geometry.Point2D{pt(0.05, 0.1), pt(0.15, 0.1)}, red, 3); !ok {
		t.Fatal("stroke should be accepted")
	}

	updates := e.Recompute()
	want := []detector.PixelUpdate{{Index: 0, R: 255}}
	if !reflect.DeepEqual(updates, want) {
		t.Fatalf("updates = %+v, want %+v", updates, want)
	}
}

func TestMissedLEDsLeftUntouched(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{pt(0.1, 0.1), pt(0.9, 0.9)})

	e.AddLine([]geometry.Point2D{pt(0.05, 0.1), pt(0.15, 0.1)}, red, 3)
	updates := e.Recompute()

	for _, u := range updates {
		if u.Index == 1 {
			t.Fatal("LED 1 is out of range and must not appear in the batch")
		}
	}
}

func TestClearTurnsOffAllValidLEDs(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{pt(0.1, 0.1), pt(0, 0), pt(0.9, 0.9)})

	e.AddLine([]geometry.Point2D{pt(0.05, 0.1), pt(0.15, 0.1)}, red, 3)
	e.Clear()

	updates := e.Recompute()
	want := []detector.PixelUpdate{{Index: 0}, {Index: 2}}
	if !reflect.DeepEqual(updates, want) {
		t.Fatalf("updates = %+v, want all valid LEDs off %+v", updates, want)
	}
}

func TestClosestSegmentWins(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{pt(0.5, 0.5), pt(0.5, 0.2)})

	// Red passes at distance ~0.02, green at ~0.01. Green is closer and must
	// win regardless of draw order.
	e.AddLine([]geometry.Point2D{pt(0.4, 0.52), pt(0.6, 0.52)}, red, 3)
	e.AddLine([]geometry.Point2D{pt(0.4, 0.49), pt(0.6, 0.49)}, green, 3)

	updates := e.Recompute()
	found := false
	for _, u := range updates {
		if u.Index == 0 {
			found = true
			if u.G != 255 || u.R != 0 {
				t.Fatalf("LED 0 = %+v, want green", u)
			}
		}
	}
	if !found {
		t.Fatal("LED 0 should be painted")
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	e := NewEngine()
	e.SetLEDs([]geometry.Point2D{
		pt(0.1, 0.1), pt(0.2, 0.1), pt(0.3, 0.1), pt(0, 0), pt(0.5, 0.1),
	})
	e.AddLine([]geometry.Point2D{pt(0.05, 0.1), pt(0.25, 0.12), pt(0.35, 0.1)}, red, 3)
	e.AddLine([]geometry.Point2D{pt(0.45, 0.1), pt(0.55, 0.1)}, green, 2)

	first := e.Recompute()
	second := e.Recompute()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recompute not idempotent:\n%+v\n%+v", first, second)
	}
	if len(first) == 0 {
		t.Fatal("expected at least one update")
	}
}

func TestShortStrokeDiscarded(t *testing.T) {
	e := NewEngine()
	if _, ok := e.AddLine([]geometry.Point2D{pt(0.1, 0.1)}, red, 3); ok {
		t.Fatal("single-point stroke must be discarded")
	}
	if len(e.Lines()) != 0 {
		t.Fatal("no line should be stored")
	}
}

func TestPointSegmentDistance(t *testing.T) {
	tests := []struct {
		name    string
		p, a, b geometry.Point2D
		want    float64
	}{
		{"perpendicular foot inside", pt(0.5, 0.5), pt(0, 0), pt(1, 0), 0.5},
		{"clamped to start", pt(-1, 0), pt(0, 0), pt(1, 0), 1},
		{"clamped to end", pt(2, 0), pt(0, 0), pt(1, 0), 1},
		{"degenerate segment", pt(3, 4), pt(0, 0), pt(0, 0), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pointSegmentDistance(tt.p, tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("distance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrokeBuilder(t *testing.T) {
	var b StrokeBuilder

	if _, ok := b.Finish(); ok {
		t.Fatal("finishing without a stroke must fail")
	}

	b.Begin(pt(0.1, 0.1))
	b.Extend(pt(0.1, 0.1)) // duplicate collapsed
	b.Extend(pt(0.2, 0.2))
	b.Extend(pt(0.3, 0.2))

	points, ok := b.Finish()
	if !ok {
		t.Fatal("stroke should be kept")
	}
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}

	b.Begin(pt(0.5, 0.5))
	if _, ok := b.Finish(); ok {
		t.Fatal("single-point stroke must be discarded")
	}
}
