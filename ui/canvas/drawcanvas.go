// Package canvas provides the LED drawing surface: it renders the mapped
// LED positions and lets the user paint strokes onto them.
package canvas

import (
	"image"
	"image/color"
	"log"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"led-mapper/internal/detector"
	"led-mapper/internal/paint"
	"led-mapper/pkg/geometry"
)

// BatchFunc receives the color updates produced when a stroke completes or
// the canvas is cleared. Implementations forward them to the device in one
// call.
type BatchFunc func([]detector.PixelUpdate)

// DrawCanvas is a widget that shows mapped LED positions and converts
// pointer drags into paint strokes. All stroke geometry is kept in
// normalized [0,1] space so the widget can be resized freely.
type DrawCanvas struct {
	widget.BaseWidget

	engine  *paint.Engine
	builder paint.StrokeBuilder

	strokeColor color.RGBA
	strokeWidth float64

	leds    []geometry.Point2D
	colors  map[int]color.RGBA // last applied LED colors, by index
	onBatch BatchFunc

	raster *fynecanvas.Raster
}

// NewDrawCanvas creates an empty drawing canvas.
func NewDrawCanvas(onBatch BatchFunc) *DrawCanvas {
	dc := &DrawCanvas{
		engine:      paint.NewEngine(),
		strokeColor: color.RGBA{R: 255, A: 255},
		strokeWidth: 3,
		colors:      make(map[int]color.RGBA),
		onBatch:     onBatch,
	}
	dc.raster = fynecanvas.NewRaster(dc.draw)
	dc.ExtendBaseWidget(dc)
	return dc
}

// SetLEDs replaces the LED coordinate list shown and painted by the canvas.
// Sentinel (0,0) entries are kept for index alignment but neither drawn nor
// painted.
func (dc *DrawCanvas) SetLEDs(leds []geometry.Point2D) {
	dc.leds = append([]geometry.Point2D(nil), leds...)
	dc.engine.SetLEDs(leds)
	dc.colors = make(map[int]color.RGBA)
	dc.Refresh()
}

// SetStrokeColor selects the color for subsequent strokes.
func (dc *DrawCanvas) SetStrokeColor(c color.RGBA) {
	dc.strokeColor = c
}

// SetStrokeWidth selects the width for subsequent strokes.
func (dc *DrawCanvas) SetStrokeWidth(w float64) {
	if w > 0 {
		dc.strokeWidth = w
	}
}

// Clear drops all strokes and emits the batch that turns every valid LED
// off.
func (dc *DrawCanvas) Clear() {
	dc.engine.Clear()
	dc.recompute()
	dc.Refresh()
}

// Dragged accumulates stroke points while the pointer is down.
func (dc *DrawCanvas) Dragged(ev *fyne.DragEvent) {
	p, ok := dc.toNormalized(ev.Position)
	if !ok {
		return
	}
	if !dc.builder.Active() {
		// The event stream has no explicit press; the first drag event
		// starts the stroke at the pre-drag position.
		start := fyne.NewPos(ev.Position.X-ev.Dragged.DX, ev.Position.Y-ev.Dragged.DY)
		if sp, ok := dc.toNormalized(start); ok {
			dc.builder.Begin(sp)
		} else {
			dc.builder.Begin(p)
		}
	}
	dc.builder.Extend(p)
	dc.Refresh()
}

// DragEnd completes the stroke: it is handed to the engine and the
// recomputed LED colors go out as one batch.
func (dc *DrawCanvas) DragEnd() {
	points, ok := dc.builder.Finish()
	if !ok {
		dc.Refresh()
		return
	}
	if _, ok := dc.engine.AddLine(points, dc.strokeColor, dc.strokeWidth); !ok {
		return
	}
	dc.recompute()
	dc.Refresh()
}

// recompute runs the proximity engine and forwards the resulting batch.
func (dc *DrawCanvas) recompute() {
	updates := dc.engine.Recompute()
	for _, u := range updates {
		dc.colors[u.Index] = color.RGBA{R: u.R, G: u.G, B: u.B, A: 255}
	}
	if len(updates) == 0 {
		return
	}
	log.Printf("Stroke batch: %d LED updates", len(updates))
	if dc.onBatch != nil {
		dc.onBatch(updates)
	}
}

// toNormalized converts a widget position to normalized [0,1] space.
func (dc *DrawCanvas) toNormalized(pos fyne.Position) (geometry.Point2D, bool) {
	size := dc.Size()
	if size.Width <= 0 || size.Height <= 0 {
		return geometry.Point2D{}, false
	}
	return geometry.Point2D{
		X: clamp01(float64(pos.X) / float64(size.Width)),
		Y: clamp01(float64(pos.Y) / float64(size.Height)),
	}, true
}

// draw renders the canvas raster: background, completed strokes, the stroke
// in progress, and the LED dots in their last applied colors.
func (dc *DrawCanvas) draw(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), color.RGBA{R: 16, G: 16, B: 20, A: 255})

	for _, line := range dc.engine.Lines() {
		drawPolyline(img, line.Points, line.Color, int(line.StrokeWidth))
	}
	if dc.builder.Active() {
		drawPolyline(img, dc.builder.Points(), dc.strokeColor, int(dc.strokeWidth))
	}

	for i, led := range dc.leds {
		if led.IsSentinel() {
			continue
		}
		col, ok := dc.colors[i]
		if !ok || (col.R == 0 && col.G == 0 && col.B == 0) {
			col = color.RGBA{R: 70, G: 70, B: 80, A: 255} // unlit
		}
		cx := int(led.X * float64(w))
		cy := int(led.Y * float64(h))
		drawDot(img, cx, cy, 4, col)
	}
	return img
}

// CreateRenderer implements fyne.Widget.
func (dc *DrawCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &drawCanvasRenderer{canvas: dc}
}

// MinSize keeps the canvas usable even in a collapsed split.
func (dc *DrawCanvas) MinSize() fyne.Size {
	return fyne.NewSize(320, 180)
}

type drawCanvasRenderer struct {
	canvas *DrawCanvas
}

func (r *drawCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *drawCanvasRenderer) MinSize() fyne.Size {
	return r.canvas.MinSize()
}

func (r *drawCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *drawCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *drawCanvasRenderer) Destroy() {}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
