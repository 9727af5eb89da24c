// Package paint converts completed freehand strokes into per-LED color
// commands by proximity matching against the mapped LED coordinates.
//
// Everything here works in normalized [0,1] space. Recomputation happens on
// stroke completion, not on every pointer move, so the serial traffic behind
// the batch endpoint stays proportional to finished strokes.
package paint

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"

	"led-mapper/internal/detector"
	"led-mapper/pkg/geometry"
)

// FallbackThreshold is the proximity threshold used when fewer than two
// valid LEDs exist and no neighbor spacing can be estimated.
const FallbackThreshold = 0.05

// neighborReach is how many index-adjacent positions on each side contribute
// to the spacing estimate (4 neighbors total). Index adjacency is a cheap
// stand-in for true nearest-neighbor search: consecutive LEDs on a strip are
// physical neighbors.
const neighborReach = 2

// Line is an immutable completed stroke. Points are in normalized space and
// number at least two.
type Line struct {
	ID          int
	Points      []geometry.Point2D
	Color       color.RGBA
	StrokeWidth float64
}

// Engine maintains the stroke list and the LED coordinates, and recomputes
// LED colors on demand. Not safe for concurrent use; the UI drives it from
// one goroutine.
type Engine struct {
	leds   []geometry.Point2D
	lines  []Line
	nextID int
}

// NewEngine creates an engine with no LEDs and no strokes.
func NewEngine() *Engine {
	return &Engine{nextID: 1}
}

// SetLEDs replaces the LED coordinate list. The list is dense and
// index-aligned with the physical strip; sentinel (0,0) entries are kept in
// place but never painted.
func (e *Engine) SetLEDs(leds []geometry.Point2D) {
	e.leds = append([]geometry.Point2D(nil), leds...)
}

// AddLine completes a stroke. Strokes with fewer than two points carry no
// segment and are discarded; the returned bool reports whether the stroke
// was kept.
func (e *Engine) AddLine(points []geometry.Point2D, col color.RGBA, strokeWidth float64) (Line, bool) {
	if len(points) < 2 {
		return Line{}, false
	}
	line := Line{
		ID:          e.nextID,
		Points:      append([]geometry.Point2D(nil), points...),
		Color:       col,
		StrokeWidth: strokeWidth,
	}
	e.nextID++
	e.lines = append(e.lines, line)
	return line, true
}

// Lines returns the completed strokes in draw order.
func (e *Engine) Lines() []Line {
	return e.lines
}

// Clear drops all strokes.
func (e *Engine) Clear() {
	e.lines = nil
}

// Threshold returns the current proximity threshold: half the mean distance
// between each valid LED and its up-to-4 index-adjacent valid neighbors.
// With fewer than two valid LEDs the fixed fallback applies.
func (e *Engine) Threshold() float64 {
	type indexed struct {
		idx int
		pos geometry.Point2D
	}
	var valid []indexed
	for i, p := range e.leds {
		if !p.IsSentinel() {
			valid = append(valid, indexed{i, p})
		}
	}
	if len(valid) < 2 {
		return FallbackThreshold
	}

	var distances []float64
	for i, led := range valid {
		for off := -neighborReach; off <= neighborReach; off++ {
			j := i + off
			if off == 0 || j < 0 || j >= len(valid) {
				continue
			}
			distances = append(distances, led.pos.Distance(valid[j].pos))
		}
	}
	if len(distances) == 0 {
		return FallbackThreshold
	}
	return stat.Mean(distances, nil) / 2
}

// Recompute produces the batched color updates for the current stroke set.
//
// Each valid LED takes the color of its closest stroke segment within the
// threshold; LEDs with no segment in range are left untouched so that
// earlier strokes keep their colors. An empty stroke list is the explicit
// clear case: every valid LED is turned off. Identical inputs always yield
// identical output.
func (e *Engine) Recompute() []detector.PixelUpdate {
	var updates []detector.PixelUpdate

	if len(e.lines) == 0 {
		for i, led := range e.leds {
			if led.IsSentinel() {
				continue
			}
			updates = append(updates, detector.PixelUpdate{Index: i})
		}
		return updates
	}

	threshold := e.Threshold()
	for i, led := range e.leds {
		if led.IsSentinel() {
			continue
		}
		best := math.Inf(1)
		var bestColor color.RGBA
		hit := false
		for _, line := range e.lines {
			for s := 0; s+1 < len(line.Points); s++ {
				d := pointSegmentDistance(led, line.Points[s], line.Points[s+1])
				if d <= threshold && d < best {
					best = d
					bestColor = line.Color
					hit = true
				}
			}
		}
		if hit {
			updates = append(updates, detector.PixelUpdate{
				Index: i,
				R:     bestColor.R,
				G:     bestColor.G,
				B:     bestColor.B,
			})
		}
	}
	return updates
}

// pointSegmentDistance returns the distance from p to the segment ab using
// the projection-and-clamp formula.
func pointSegmentDistance(p, a, b geometry.Point2D) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a)
	}
	ap := p.Sub(a)
	t := (ap.X*ab.X + ap.Y*ab.Y) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := a.Add(ab.Scale(t))
	return p.Distance(closest)
}
