// Package detector is the HTTP client for the external detection and device
// backend. The backend owns the physical camera, the serial link to the LED
// controller, and the brightness-thresholding detection loop; this package
// only speaks its JSON contract.
package detector

import (
	"led-mapper/pkg/geometry"
)

// Status values reported by the backend in MappingStatus.Status.
const (
	StatusIdle      = "idle"
	StatusMapping   = "mapping"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ConnectResult is the response to a device connect request.
type ConnectResult struct {
	OK   bool   `json:"ok"`
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// MappingStatus is the backend's live status document, polled during a
// mapping run. Coords are [x,y] pairs normalized to the full frame;
// (0,0) entries mean the LED at that index was not found.
type MappingStatus struct {
	Running             bool                    `json:"running"`
	Done                bool                    `json:"done"`
	Status              string                  `json:"status,omitempty"`
	Coords              [][2]float64            `json:"coords,omitempty"`
	Width               int                     `json:"w,omitempty"`
	Height              int                     `json:"h,omitempty"`
	ROI                 *geometry.NormalizedROI `json:"roi,omitempty"`
	CurrentLED          int                     `json:"current_led,omitempty"`
	TotalLEDs           int                     `json:"total_leds,omitempty"`
	ConsecutiveFailures int                     `json:"consecutive_failures,omitempty"`
	AdaptiveMode        bool                    `json:"adaptive_mode,omitempty"`
	Message             string                  `json:"message,omitempty"`
}

// PixelUpdate is a single LED color assignment, batched for the
// /draw/led/batch endpoint.
type PixelUpdate struct {
	Index int
	R     uint8
	G     uint8
	B     uint8
}

// StartMappingRequest is the payload for /start_mapping.
type StartMappingRequest struct {
	ROI        geometry.NormalizedROI `json:"roi"`
	Brightness float64                `json:"brightness"`
	LEDPower   bool                   `json:"ledPower"`
}

// Client is the contract the session controller consumes. *HTTPClient is the
// production implementation; tests substitute fakes.
type Client interface {
	Connect(port string, baud int) (ConnectResult, error)
	SetPower(on bool) error
	SetPixel(index int, r, g, b uint8) error
	SetPixelsBatch(updates []PixelUpdate) error
	StartMapping(req StartMappingRequest) error
	ResumeMapping(fromIndex int, brightness float64) error
	MappingStatus() (MappingStatus, error)
}
