// Package geometry provides the coordinate types and space conversions used
// throughout the application.
//
// Four coordinate spaces appear in the pipeline: display space (on-screen
// pixels of the rendered video element), intrinsic space (native pixels of
// the camera frame), normalized space ([0,1] relative to the intrinsic frame,
// the canonical cross-boundary form), and the fixed 160x90 export canvas
// owned by the mapfile package. Points carry no space tag; conversions are
// always explicit.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// IsSentinel reports whether the point is the reserved "LED not found"
// marker. The detection backend records exactly (0,0) for LEDs it could not
// locate; such entries keep the coordinate list index-aligned with the
// physical strip but must be excluded from distance and paint computations.
func (p Point2D) IsSentinel() bool {
	return p.X == 0 && p.Y == 0
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point2D) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point2D {
	return Point2D{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// TopLeft returns the top-left corner.
func (r Rect) TopLeft() Point2D {
	return Point2D{X: r.X, Y: r.Y}
}

// BottomRight returns the bottom-right corner.
func (r Rect) BottomRight() Point2D {
	return Point2D{X: r.X + r.Width, Y: r.Y + r.Height}
}

// IsEmpty reports whether the rectangle has a non-positive dimension.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Size represents a 2D size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// IsDegenerate reports whether either dimension is zero, negative, or
// non-finite. A degenerate size typically means video metadata has not
// loaded yet.
func (s Size) IsDegenerate() bool {
	return !(isFinitePositive(s.Width) && isFinitePositive(s.Height))
}

// NormalizedROI is a region of interest with all components in [0,1],
// relative to the intrinsic frame. This is the only ROI form that crosses
// the boundary to the detection backend.
type NormalizedROI struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Validate checks the normalized-ROI invariants and returns a GeometryError
// naming the first violated rule, or nil if the ROI is well formed.
func (r NormalizedROI) Validate() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"x", r.X}, {"y", r.Y}, {"w", r.W}, {"h", r.H},
	} {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return &GeometryError{Op: "validate ROI", Reason: c.name + " is not finite"}
		}
	}
	switch {
	case r.W <= 0:
		return &GeometryError{Op: "validate ROI", Reason: "w must be > 0"}
	case r.H <= 0:
		return &GeometryError{Op: "validate ROI", Reason: "h must be > 0"}
	case r.X < 0:
		return &GeometryError{Op: "validate ROI", Reason: "x must be >= 0"}
	case r.Y < 0:
		return &GeometryError{Op: "validate ROI", Reason: "y must be >= 0"}
	case r.X+r.W > 1:
		return &GeometryError{Op: "validate ROI", Reason: "x+w must be <= 1"}
	case r.Y+r.H > 1:
		return &GeometryError{Op: "validate ROI", Reason: "y+h must be <= 1"}
	}
	return nil
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
