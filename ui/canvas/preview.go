package canvas

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"led-mapper/internal/camera"
	"led-mapper/internal/roi"
	"led-mapper/pkg/geometry"
)

// CameraPreview shows the live camera frame letterboxed into the widget and
// lets the user drag out the mapping ROI. During a mapping run it overlays
// the coordinates discovered so far as live dots.
type CameraPreview struct {
	widget.BaseWidget

	mu        sync.Mutex
	frame     *image.RGBA
	intrinsic geometry.Size
	dots      []geometry.Point2D // normalized full-frame coordinates

	selector *roi.Selector
	raster   *fynecanvas.Raster

	// video placement inside the widget, recomputed on every draw
	displayRect geometry.Rect
}

// NewCameraPreview creates a preview with an empty ROI selector.
func NewCameraPreview() *CameraPreview {
	cp := &CameraPreview{
		selector: roi.NewSelector(),
	}
	cp.raster = fynecanvas.NewRaster(cp.draw)
	cp.ExtendBaseWidget(cp)
	return cp
}

// Selector exposes the ROI selection state machine.
func (cp *CameraPreview) Selector() *roi.Selector {
	return cp.selector
}

// SetFrame publishes a new camera frame and its intrinsic size. Safe to call
// from the capture goroutine.
func (cp *CameraPreview) SetFrame(frame *image.RGBA, intrinsic geometry.Size) {
	cp.mu.Lock()
	cp.frame = frame
	cp.intrinsic = intrinsic
	cp.mu.Unlock()
	cp.Refresh()
}

// ClearFrame drops the current frame, e.g. while the backend holds the
// camera.
func (cp *CameraPreview) ClearFrame() {
	cp.mu.Lock()
	cp.frame = nil
	cp.mu.Unlock()
	cp.Refresh()
}

// SetDots publishes the live LED coordinates to overlay. Sentinel entries
// are skipped when drawing.
func (cp *CameraPreview) SetDots(dots []geometry.Point2D) {
	cp.mu.Lock()
	cp.dots = append([]geometry.Point2D(nil), dots...)
	cp.mu.Unlock()
	cp.Refresh()
}

// Intrinsic returns the intrinsic size of the current frame. Degenerate
// until the first frame arrives.
func (cp *CameraPreview) Intrinsic() geometry.Size {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.intrinsic
}

// NormalizedROI derives the ROI to send to the detection backend.
func (cp *CameraPreview) NormalizedROI() (geometry.NormalizedROI, bool) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.selector.Normalized(cp.intrinsic)
}

// Dragged drives the ROI selection gesture.
func (cp *CameraPreview) Dragged(ev *fyne.DragEvent) {
	cp.mu.Lock()
	if !cp.selector.Dragging() {
		start := geometry.NewPoint2D(
			float64(ev.Position.X-ev.Dragged.DX),
			float64(ev.Position.Y-ev.Dragged.DY),
		)
		cp.selector.Press(start)
	}
	p := geometry.NewPoint2D(float64(ev.Position.X), float64(ev.Position.Y))
	cp.selector.Drag(p, cp.displayRect, cp.intrinsic)
	cp.mu.Unlock()
	cp.Refresh()
}

// DragEnd finishes the ROI gesture.
func (cp *CameraPreview) DragEnd() {
	cp.mu.Lock()
	cp.selector.Release()
	cp.mu.Unlock()
	cp.Refresh()
}

// draw renders the letterboxed frame, the ROI overlay, and the live dots.
func (cp *CameraPreview) draw(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, img.Bounds(), color.RGBA{R: 8, G: 8, B: 10, A: 255})

	cp.mu.Lock()
	defer cp.mu.Unlock()

	if cp.frame == nil || cp.intrinsic.IsDegenerate() || w == 0 || h == 0 {
		return img
	}

	cp.displayRect = letterbox(cp.intrinsic, w, h)
	dr := cp.displayRect

	scaled := camera.ScalePreview(cp.frame, int(dr.Width), int(dr.Height))
	dst := image.Rect(int(dr.X), int(dr.Y), int(dr.X+dr.Width), int(dr.Y+dr.Height))
	copyImage(img, dst, scaled)

	if rect, ok := cp.selector.DisplayRect(dr, cp.intrinsic); ok {
		outline := image.Rect(int(rect.X), int(rect.Y), int(rect.X+rect.Width), int(rect.Y+rect.Height))
		drawRectOutline(img, outline, color.RGBA{R: 255, G: 109, B: 0, A: 255})
	}

	for _, dot := range cp.dots {
		if dot.IsSentinel() {
			continue
		}
		dp, err := geometry.NormalizedToDisplay(dot, dr, cp.intrinsic)
		if err != nil {
			continue
		}
		drawDot(img, int(dp.X), int(dp.Y), 3, color.RGBA{G: 255, A: 255})
	}
	return img
}

// CreateRenderer implements fyne.Widget.
func (cp *CameraPreview) CreateRenderer() fyne.WidgetRenderer {
	return &previewRenderer{preview: cp}
}

// MinSize keeps a 16:9-ish preview area available.
func (cp *CameraPreview) MinSize() fyne.Size {
	return fyne.NewSize(480, 270)
}

type previewRenderer struct {
	preview *CameraPreview
}

func (r *previewRenderer) Layout(size fyne.Size) {
	r.preview.raster.Resize(size)
}

func (r *previewRenderer) MinSize() fyne.Size {
	return r.preview.MinSize()
}

func (r *previewRenderer) Refresh() {
	r.preview.raster.Refresh()
}

func (r *previewRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.preview.raster}
}

func (r *previewRenderer) Destroy() {}

// letterbox fits the intrinsic frame into a w x h area preserving aspect.
func letterbox(intrinsic geometry.Size, w, h int) geometry.Rect {
	frameAspect := intrinsic.Width / intrinsic.Height
	areaAspect := float64(w) / float64(h)
	if frameAspect > areaAspect {
		height := float64(w) / frameAspect
		return geometry.NewRect(0, (float64(h)-height)/2, float64(w), height)
	}
	width := float64(h) * frameAspect
	return geometry.NewRect((float64(w)-width)/2, 0, width, float64(h))
}

// copyImage blits src into the dst rectangle of img, clipped to bounds.
func copyImage(img *image.RGBA, dst image.Rectangle, src *image.RGBA) {
	dst = dst.Intersect(img.Bounds())
	for y := dst.Min.Y; y < dst.Max.Y; y++ {
		for x := dst.Min.X; x < dst.Max.X; x++ {
			img.SetRGBA(x, y, src.RGBAAt(x-dst.Min.X, y-dst.Min.Y))
		}
	}
}
