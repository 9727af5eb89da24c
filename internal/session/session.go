// Package session drives the LED mapping lifecycle: it validates and issues
// the start/resume requests, polls the detection backend until the run
// reaches a terminal state, and owns the canonical list of discovered LED
// coordinates.
package session

import (
	"fmt"

	"led-mapper/pkg/geometry"
)

// Phase is the lifecycle state of a mapping session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the mapping state. Coordinates is dense and
// index-aligned with the physical strip; entries equal to the (0,0) sentinel
// mark LEDs the detector could not locate and must be skipped by geometric
// consumers.
type Session struct {
	Phase               Phase
	CurrentIndex        int
	TotalFound          int
	ConsecutiveFailures int
	AdaptiveMode        bool
	Message             string
	VideoSize           geometry.Size
	ROI                 geometry.NormalizedROI
	HasROI              bool
	Coordinates         []geometry.Point2D
}

// ValidCoordinates returns the non-sentinel coordinates paired with their
// physical LED indices.
func (s Session) ValidCoordinates() map[int]geometry.Point2D {
	valid := make(map[int]geometry.Point2D)
	for i, c := range s.Coordinates {
		if !c.IsSentinel() {
			valid[i] = c
		}
	}
	return valid
}

// ValidCount returns the number of non-sentinel coordinates.
func (s Session) ValidCount() int {
	n := 0
	for _, c := range s.Coordinates {
		if !c.IsSentinel() {
			n++
		}
	}
	return n
}

// ValidationError reports a violated precondition on session start. No
// network call is made when one is returned.
type ValidationError struct {
	Invariant string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: precondition violated: %s", e.Invariant)
}

// SessionError reports a mapping run that ended in failure, either because
// the backend declared an error status or because a poll could not be
// completed. The caller owns recovery: reacquire the camera, then resume.
type SessionError struct {
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("session: %s", e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}
