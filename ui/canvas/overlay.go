package canvas

import (
	"image"
	"image/color"

	"led-mapper/pkg/geometry"
)

// fillRect paints a solid rectangle, clipped to the image bounds.
func fillRect(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// drawDot paints a filled circle centered at (cx, cy).
func drawDot(img *image.RGBA, cx, cy, radius int, col color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if image.Pt(x, y).In(img.Bounds()) {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

// drawPolyline renders a normalized-space point sequence as connected thick
// segments scaled to the image size.
func drawPolyline(img *image.RGBA, points []geometry.Point2D, col color.RGBA, width int) {
	if width < 1 {
		width = 1
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	for i := 0; i+1 < len(points); i++ {
		x0 := int(points[i].X * w)
		y0 := int(points[i].Y * h)
		x1 := int(points[i+1].X * w)
		y1 := int(points[i+1].Y * h)
		drawThickLine(img, x0, y0, x1, y1, width, col)
	}
}

// drawThickLine draws a line segment with the given pixel width using
// Bresenham stepping and a square brush.
func drawThickLine(img *image.RGBA, x0, y0, x1, y1, width int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	half := width / 2

	for {
		fillRect(img, image.Rect(x0-half, y0-half, x0+half+1, y0+half+1), col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawRectOutline paints a 1px rectangle outline, clipped to the image.
func drawRectOutline(img *image.RGBA, r image.Rectangle, col color.RGBA) {
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), col)
	fillRect(img, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), col)
	fillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), col)
	fillRect(img, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), col)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
