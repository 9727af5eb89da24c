// Package mapfile reads and writes the portable LED mapping file.
//
// The file stores LED positions in a fixed 160x90 reference canvas so that a
// mapping captured at any camera resolution can be exchanged between tools.
// The field names and the canvas size are an interchange contract and must
// not change.
package mapfile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"led-mapper/pkg/geometry"
)

// Reference canvas dimensions. Fixed by the interchange format.
const (
	CanvasWidth  = 160
	CanvasHeight = 90
)

// Version is the mapping file format version this package writes.
const Version = 1

// Metadata describes the mapping run the file was exported from.
type Metadata struct {
	Name      string `json:"name"`
	Created   string `json:"created"`
	TotalLEDs int    `json:"totalLeds"`
	ValidLEDs int    `json:"validLeds"`
}

// Canvas records the reference canvas size, always 160x90.
type Canvas struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CanvasROI is the ROI placement inside the reference canvas.
type CanvasROI struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OriginalROI is the capture-time ROI in intrinsic video pixels, together
// with the intrinsic frame size. Restoring it is the only way to rebuild a
// session without re-running detection.
type OriginalROI struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	VideoWidth  float64 `json:"videoWidth"`
	VideoHeight float64 `json:"videoHeight"`
}

// LED is one exported LED position in canvas coordinates. Indices may be
// sparse: sentinel (not-found) LEDs are dropped on export.
type LED struct {
	Index int `json:"index"`
	X     int `json:"x"`
	Y     int `json:"y"`
}

// File is the complete mapping file shape.
type File struct {
	Version     int         `json:"version"`
	Metadata    Metadata    `json:"metadata"`
	Canvas      Canvas      `json:"canvas"`
	ROI         CanvasROI   `json:"roi"`
	OriginalROI OriginalROI `json:"originalROI"`
	LEDs        []LED       `json:"leds"`
}

// Snapshot is the live-session data the codec translates to and from the
// file shape. The codec never mutates a caller's session; Import returns a
// fresh Snapshot.
type Snapshot struct {
	Name        string
	Coordinates []geometry.Point2D // normalized, dense, sentinel-preserving
	ROI         geometry.Rect      // intrinsic video pixels
	VideoSize   geometry.Size      // intrinsic frame size
}

// CodecError reports a malformed mapping file. Import never produces a
// partial result; the first failed check aborts it.
type CodecError struct {
	Field  string
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("mapfile: %s: %s", e.Field, e.Reason)
}

// placement is the aspect-preserving fit of the ROI into the canvas.
type placement struct {
	offsetX, offsetY float64
	width, height    float64
}

// fitROI computes the best placement of an ROI with the given aspect into
// the 160x90 canvas: fit width for wide ROIs (vertically centered), fit
// height for tall ones (horizontally centered).
func fitROI(roiAspect float64) placement {
	const canvasAspect = float64(CanvasWidth) / float64(CanvasHeight)
	if roiAspect > canvasAspect {
		height := float64(CanvasWidth) / roiAspect
		return placement{
			offsetY: (float64(CanvasHeight) - height) / 2,
			width:   CanvasWidth,
			height:  height,
		}
	}
	width := float64(CanvasHeight) * roiAspect
	return placement{
		offsetX: (float64(CanvasWidth) - width) / 2,
		width:   width,
		height:  CanvasHeight,
	}
}

// Export converts a session snapshot into the portable file shape. Sentinel
// coordinates are dropped from the LED list (their indices become gaps);
// metadata records both the full strip length and the exported count.
func Export(s Snapshot) (*File, error) {
	if s.ROI.IsEmpty() {
		return nil, &CodecError{Field: "roi", Reason: "width and height must be positive"}
	}
	if s.VideoSize.IsDegenerate() {
		return nil, &CodecError{Field: "videoSize", Reason: "intrinsic video dimensions unavailable"}
	}

	place := fitROI(s.ROI.Width / s.ROI.Height)

	var leds []LED
	for i, c := range s.Coordinates {
		if c.IsSentinel() {
			continue
		}
		leds = append(leds, LED{
			Index: i,
			X:     int(math.Round(place.offsetX + c.X*place.width)),
			Y:     int(math.Round(place.offsetY + c.Y*place.height)),
		})
	}

	name := s.Name
	if name == "" {
		name = "LED Mapping"
	}

	return &File{
		Version: Version,
		Metadata: Metadata{
			Name:      name,
			Created:   time.Now().UTC().Format(time.RFC3339),
			TotalLEDs: len(s.Coordinates),
			ValidLEDs: len(leds),
		},
		Canvas: Canvas{Width: CanvasWidth, Height: CanvasHeight},
		ROI: CanvasROI{
			X:      place.offsetX,
			Y:      place.offsetY,
			Width:  place.width,
			Height: place.height,
		},
		OriginalROI: OriginalROI{
			X:           s.ROI.X,
			Y:           s.ROI.Y,
			Width:       s.ROI.Width,
			Height:      s.ROI.Height,
			VideoWidth:  s.VideoSize.Width,
			VideoHeight: s.VideoSize.Height,
		},
		LEDs: leds,
	}, nil
}

// Import validates a file and reverses the canvas placement back into a
// fresh session snapshot. Gaps in the sparse LED index sequence are filled
// with the (0,0) sentinel so the coordinate list stays dense and
// index-aligned with the physical strip. The original ROI and video size are
// restored verbatim.
func Import(f *File) (Snapshot, error) {
	if err := validate(f); err != nil {
		return Snapshot{}, err
	}

	maxIndex := -1
	for _, led := range f.LEDs {
		if led.Index > maxIndex {
			maxIndex = led.Index
		}
	}

	coords := make([]geometry.Point2D, maxIndex+1)
	for _, led := range f.LEDs {
		coords[led.Index] = geometry.Point2D{
			X: clamp01((float64(led.X) - f.ROI.X) / f.ROI.Width),
			Y: clamp01((float64(led.Y) - f.ROI.Y) / f.ROI.Height),
		}
	}

	return Snapshot{
		Name:        f.Metadata.Name,
		Coordinates: coords,
		ROI: geometry.Rect{
			X:      f.OriginalROI.X,
			Y:      f.OriginalROI.Y,
			Width:  f.OriginalROI.Width,
			Height: f.OriginalROI.Height,
		},
		VideoSize: geometry.NewSize(f.OriginalROI.VideoWidth, f.OriginalROI.VideoHeight),
	}, nil
}

// BackendDocument is the detection backend's own mapping.json shape, served
// verbatim by its /load_mapping route. Coords are normalized to the full
// frame; the roi block is the normalized capture ROI.
type BackendDocument struct {
	Coords    [][2]float64           `json:"coords"`
	ROI       geometry.NormalizedROI `json:"roi"`
	Width     float64                `json:"w"`
	Height    float64                `json:"h"`
	TotalLEDs int                    `json:"total_leds"`
	LEDsFound int                    `json:"leds_found"`
}

// ImportBackend converts a backend document into a session snapshot:
// coordinates are re-based from full-frame to ROI-relative normalized space
// and the ROI is expanded to intrinsic pixels. Sentinel entries stay sentinel.
func ImportBackend(doc *BackendDocument) (Snapshot, error) {
	if doc == nil {
		return Snapshot{}, &CodecError{Field: "document", Reason: "missing document"}
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return Snapshot{}, &CodecError{Field: "w/h", Reason: "frame dimensions must be positive"}
	}
	if err := doc.ROI.Validate(); err != nil {
		return Snapshot{}, &CodecError{Field: "roi", Reason: err.Error()}
	}

	coords := make([]geometry.Point2D, len(doc.Coords))
	for i, c := range doc.Coords {
		p := geometry.Point2D{X: c[0], Y: c[1]}
		if p.IsSentinel() {
			continue
		}
		coords[i] = geometry.Point2D{
			X: clamp01((p.X - doc.ROI.X) / doc.ROI.W),
			Y: clamp01((p.Y - doc.ROI.Y) / doc.ROI.H),
		}
	}

	return Snapshot{
		Name:        "Backend Mapping",
		Coordinates: coords,
		ROI: geometry.Rect{
			X:      doc.ROI.X * doc.Width,
			Y:      doc.ROI.Y * doc.Height,
			Width:  doc.ROI.W * doc.Width,
			Height: doc.ROI.H * doc.Height,
		},
		VideoSize: geometry.NewSize(doc.Width, doc.Height),
	}, nil
}

func validate(f *File) error {
	if f == nil {
		return &CodecError{Field: "file", Reason: "missing document"}
	}
	if f.Version != Version {
		return &CodecError{Field: "version", Reason: fmt.Sprintf("unsupported version %d", f.Version)}
	}
	if f.Canvas.Width != CanvasWidth || f.Canvas.Height != CanvasHeight {
		return &CodecError{
			Field:  "canvas",
			Reason: fmt.Sprintf("must be %dx%d, got %dx%d", CanvasWidth, CanvasHeight, f.Canvas.Width, f.Canvas.Height),
		}
	}
	if f.ROI.Width <= 0 || f.ROI.Height <= 0 {
		return &CodecError{Field: "roi", Reason: "width and height must be positive"}
	}
	if f.OriginalROI.VideoWidth <= 0 || f.OriginalROI.VideoHeight <= 0 {
		return &CodecError{Field: "originalROI", Reason: "videoWidth and videoHeight must be positive"}
	}
	for i, led := range f.LEDs {
		if led.Index < 0 {
			return &CodecError{Field: "leds", Reason: fmt.Sprintf("entry %d has negative index", i)}
		}
	}
	return nil
}

// Load reads and imports a mapping file from disk.
func Load(path string) (Snapshot, *File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, nil, fmt.Errorf("mapfile: read %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return Snapshot{}, nil, &CodecError{Field: "file", Reason: "invalid JSON: " + err.Error()}
	}
	snap, err := Import(&f)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return snap, &f, nil
}

// Save exports a snapshot and writes it to disk with stable indentation.
func Save(path string, s Snapshot) (*File, error) {
	f, err := Export(s)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mapfile: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("mapfile: write %s: %w", path, err)
	}
	return f, nil
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
