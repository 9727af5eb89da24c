// Package camera wraps the local gocv capture device used for the live
// preview. The detection backend needs exclusive access to the physical
// camera while a mapping run is active, so the preview capture must be
// released before start_mapping and reacquired afterwards; Open retries for
// a few seconds to cover the hand-back window.
package camera

import (
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"

	"led-mapper/pkg/geometry"
)

const (
	openAttempts = 5
	openRetryGap = time.Second
)

// Capture is an open camera device. Safe for concurrent use.
type Capture struct {
	mu    sync.Mutex
	cap   *gocv.VideoCapture
	mat   gocv.Mat
	index int
	size  geometry.Size
}

// Open acquires the camera at the given device index, retrying while the
// device is still held elsewhere. A test frame is read to confirm the device
// actually delivers frames and to learn the intrinsic size.
func Open(index int) (*Capture, error) {
	var lastErr error
	for attempt := 0; attempt < openAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(openRetryGap)
		}
		cap, err := gocv.OpenVideoCapture(index)
		if err != nil {
			lastErr = err
			continue
		}
		mat := gocv.NewMat()
		if ok := cap.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			cap.Close()
			lastErr = fmt.Errorf("device %d opened but delivered no frame", index)
			continue
		}
		c := &Capture{
			cap:   cap,
			mat:   mat,
			index: index,
			size:  geometry.NewSize(float64(mat.Cols()), float64(mat.Rows())),
		}
		return c, nil
	}
	return nil, fmt.Errorf("camera: open device %d: %w", index, lastErr)
}

// Size returns the intrinsic frame size.
func (c *Capture) Size() geometry.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Frame reads the next frame as an RGBA image. Returns an error once the
// capture has been released or the device stops delivering frames.
func (c *Capture) Frame() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil, fmt.Errorf("camera: device %d is released", c.index)
	}
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("camera: device %d stopped delivering frames", c.index)
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera: convert frame: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	return rgba, nil
}

// Release closes the device. Idempotent; the session controller calls it
// through the CameraHandle interface before detection starts.
func (c *Capture) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap != nil {
		c.cap.Close()
		c.cap = nil
		c.mat.Close()
	}
}

// ScalePreview resizes a frame to the given display size with bilinear
// filtering. Used to render the preview without handing intrinsic-sized
// images to the UI toolkit every tick.
func ScalePreview(src *image.RGBA, width, height int) *image.RGBA {
	if width <= 0 || height <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}
