package session

import (
	"log"
	"sync"
	"time"

	"led-mapper/internal/detector"
	"led-mapper/pkg/geometry"
)

// DefaultPollInterval is how often the backend status is queried while a
// mapping run is active.
const DefaultPollInterval = time.Second

// CameraHandle is the local camera resource the controller must release
// before detection starts. The detection backend needs exclusive access to
// the physical camera; the UI reacquires it once the session reaches a
// terminal phase.
type CameraHandle interface {
	Release()
}

// StartRequest carries everything Start needs to validate and issue a fresh
// mapping run.
type StartRequest struct {
	ROI        *geometry.NormalizedROI // nil means no ROI has been selected
	Brightness float64
	LEDPower   bool
	VideoSize  geometry.Size
}

// Listener receives a session snapshot after every state change. Called from
// the polling goroutine; implementations must marshal onto their own thread
// if needed.
type Listener func(Session)

// Controller runs mapping sessions against a detector backend. All exported
// methods are safe for concurrent use.
type Controller struct {
	det      detector.Client
	interval time.Duration

	mu        sync.Mutex
	session   Session
	connected bool
	camera    CameraHandle
	stop      chan struct{}
	listeners []Listener

	// resumeBase is the LED index a resumed run restarted from. The backend
	// resets its status coordinate list on resume and appends from that
	// index, so incoming entry 0 is the LED at resumeBase, not LED 0.
	resumeBase int
}

// NewController creates a controller polling at DefaultPollInterval.
func NewController(det detector.Client) *Controller {
	return &Controller{
		det:      det,
		interval: DefaultPollInterval,
		session:  Session{Phase: PhaseIdle},
	}
}

// SetPollInterval overrides the status poll interval. Intended for tests.
func (c *Controller) SetPollInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
}

// SetConnected records whether the serial device behind the backend is
// connected. Starting a session requires it.
func (c *Controller) SetConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
}

// SetCamera hands the controller the local camera resource to release before
// detection starts. Pass nil when the preview is not running.
func (c *Controller) SetCamera(h CameraHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = h
}

// OnUpdate registers a listener for session snapshots.
func (c *Controller) OnUpdate(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Restore replaces the session state wholesale, typically after importing a
// mapping file. Only allowed while no run is active.
func (c *Controller) Restore(s Session) error {
	c.mu.Lock()
	if c.session.Phase == PhaseRunning {
		c.mu.Unlock()
		return &ValidationError{Invariant: "cannot restore while a mapping run is active"}
	}
	c.session = s
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, snap)
	return nil
}

// Start validates the request, releases the local camera, issues
// start_mapping and begins polling. A violated precondition returns a
// *ValidationError naming the invariant; no network call is made in that
// case.
func (c *Controller) Start(req StartRequest) error {
	c.mu.Lock()
	if c.session.Phase == PhaseRunning {
		c.mu.Unlock()
		return &ValidationError{Invariant: "a mapping run is already active"}
	}
	if !c.connected {
		c.mu.Unlock()
		return &ValidationError{Invariant: "device not connected"}
	}
	if req.ROI == nil {
		c.mu.Unlock()
		return &ValidationError{Invariant: "no ROI selected"}
	}
	if req.VideoSize.IsDegenerate() {
		c.mu.Unlock()
		return &ValidationError{Invariant: "intrinsic video dimensions unavailable"}
	}
	if err := req.ROI.Validate(); err != nil {
		c.mu.Unlock()
		return &ValidationError{Invariant: err.Error()}
	}

	camera := c.camera
	c.camera = nil
	c.mu.Unlock()

	// The backend opens the physical camera itself; ours must be closed
	// before the request goes out.
	if camera != nil {
		camera.Release()
	}

	err := c.det.StartMapping(detector.StartMappingRequest{
		ROI:        *req.ROI,
		Brightness: req.Brightness,
		LEDPower:   req.LEDPower,
	})
	if err != nil {
		c.failAndNotify("start mapping request failed", err)
		return &SessionError{Message: "start mapping request failed", Err: err}
	}

	c.mu.Lock()
	c.session = Session{
		Phase:        PhaseRunning,
		CurrentIndex: -1,
		AdaptiveMode: true,
		VideoSize:    req.VideoSize,
		ROI:          *req.ROI,
		HasROI:       true,
	}
	c.resumeBase = 0
	c.armLocked()
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	log.Printf("Mapping started (roi %.3f,%.3f %.3fx%.3f)", req.ROI.X, req.ROI.Y, req.ROI.W, req.ROI.H)
	notify(listeners, snap)
	return nil
}

// Resume continues a previously interrupted run from fromIndex. Coordinates
// already discovered below fromIndex are kept; the backend replays its last
// ROI.
func (c *Controller) Resume(fromIndex int, brightness float64) error {
	c.mu.Lock()
	if c.session.Phase == PhaseRunning {
		c.mu.Unlock()
		return &ValidationError{Invariant: "a mapping run is already active"}
	}
	if !c.connected {
		c.mu.Unlock()
		return &ValidationError{Invariant: "device not connected"}
	}
	if fromIndex <= 0 {
		c.mu.Unlock()
		return &ValidationError{Invariant: "resume index must be positive"}
	}
	if len(c.session.Coordinates) == 0 && c.session.CurrentIndex <= 0 {
		c.mu.Unlock()
		return &ValidationError{Invariant: "no prior mapping progress to resume from"}
	}

	camera := c.camera
	c.camera = nil
	c.mu.Unlock()

	if camera != nil {
		camera.Release()
	}

	if err := c.det.ResumeMapping(fromIndex, brightness); err != nil {
		c.failAndNotify("resume mapping request failed", err)
		return &SessionError{Message: "resume mapping request failed", Err: err}
	}

	c.mu.Lock()
	kept := c.session.Coordinates
	if fromIndex < len(kept) {
		kept = kept[:fromIndex]
	}
	c.session.Phase = PhaseRunning
	c.session.CurrentIndex = fromIndex
	c.session.Message = ""
	c.session.Coordinates = kept
	c.resumeBase = fromIndex
	c.armLocked()
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	log.Printf("Mapping resumed from LED %d", fromIndex)
	notify(listeners, snap)
	return nil
}

// Cancel stops re-arming the poll loop. An in-flight status request is
// allowed to finish; its result is discarded. The session keeps its last
// observed state.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
}

// armLocked starts a fresh poll loop, replacing any previous one.
func (c *Controller) armLocked() {
	c.disarmLocked()
	stop := make(chan struct{})
	c.stop = stop
	go c.pollLoop(stop)
}

func (c *Controller) disarmLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// pollLoop queries the backend status at the configured interval. The next
// poll is armed only after the previous one resolves, so a slow network can
// never stack requests.
func (c *Controller) pollLoop(stop chan struct{}) {
	c.mu.Lock()
	interval := c.interval
	c.mu.Unlock()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		status, err := c.det.MappingStatus()

		select {
		case <-stop:
			// Cancelled while the request was in flight; drop the result.
			return
		default:
		}

		if err != nil {
			c.failAndNotify("status poll failed", err)
			return
		}
		if c.apply(status) {
			return
		}
		timer.Reset(interval)
	}
}

// apply folds a status document into the session. Returns true when the run
// reached a terminal phase and polling must stop.
func (c *Controller) apply(status detector.MappingStatus) bool {
	c.mu.Lock()

	s := &c.session
	s.CurrentIndex = status.CurrentLED
	s.ConsecutiveFailures = status.ConsecutiveFailures
	s.AdaptiveMode = status.AdaptiveMode
	if status.Message != "" {
		s.Message = status.Message
	}
	if status.Width > 0 && status.Height > 0 {
		s.VideoSize = geometry.NewSize(float64(status.Width), float64(status.Height))
	}
	if status.ROI != nil {
		s.ROI = *status.ROI
		s.HasROI = true
	}

	terminal := false
	switch {
	case status.Status == detector.StatusError:
		s.Phase = PhaseError
		terminal = true
		log.Printf("Mapping failed: %s", s.Message)
	case status.Done && !status.Running:
		s.Phase = PhaseCompleted
		s.Coordinates = c.mergeCoordsLocked(status.Coords)
		s.TotalFound = s.ValidCount()
		terminal = true
		log.Printf("Mapping complete: %d/%d LEDs located", s.TotalFound, len(s.Coordinates))
	case status.Running:
		// Keep streaming partial coordinates so the overlay can show live
		// dots during the run.
		s.Coordinates = c.mergeCoordsLocked(status.Coords)
		s.TotalFound = s.ValidCount()
	}

	if terminal {
		c.disarmLocked()
	}
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	notify(listeners, snap)
	return terminal
}

func (c *Controller) failAndNotify(msg string, err error) {
	c.mu.Lock()
	c.session.Phase = PhaseError
	c.session.Message = (&SessionError{Message: msg, Err: err}).Error()
	c.disarmLocked()
	snap := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	log.Printf("Mapping error: %s: %v", msg, err)
	notify(listeners, snap)
}

// mergeCoordsLocked folds a status coordinate list into the session at the
// resume offset: the kept prefix below resumeBase stays untouched and the
// incoming entries land at resumeBase onward. For a fresh run the offset is
// zero and the incoming list is taken as-is.
func (c *Controller) mergeCoordsLocked(coords [][2]float64) []geometry.Point2D {
	pts := coordsToPoints(coords)
	if c.resumeBase == 0 {
		return pts
	}
	merged := make([]geometry.Point2D, 0, c.resumeBase+len(pts))
	prefix := c.session.Coordinates
	if len(prefix) > c.resumeBase {
		prefix = prefix[:c.resumeBase]
	}
	merged = append(merged, prefix...)
	for len(merged) < c.resumeBase {
		merged = append(merged, geometry.Point2D{})
	}
	return append(merged, pts...)
}

func (c *Controller) snapshotLocked() Session {
	snap := c.session
	snap.Coordinates = append([]geometry.Point2D(nil), c.session.Coordinates...)
	return snap
}

func notify(listeners []Listener, snap Session) {
	for _, l := range listeners {
		l(snap)
	}
}

func coordsToPoints(coords [][2]float64) []geometry.Point2D {
	points := make([]geometry.Point2D, len(coords))
	for i, c := range coords {
		points[i] = geometry.Point2D{X: c[0], Y: c[1]}
	}
	return points
}
