package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"led-mapper/internal/detector"
	"led-mapper/pkg/geometry"
)

// fakeDetector scripts MappingStatus responses and records calls.
type fakeDetector struct {
	mu            sync.Mutex
	statuses      []detector.MappingStatus
	statusErr     error
	statusCalls   int
	startCalls    int
	resumeCalls   int
	resumeIndex   int
	lastStart     detector.StartMappingRequest
	batchedPixels [][]detector.PixelUpdate
}

func (f *fakeDetector) Connect(port string, baud int) (detector.ConnectResult, error) {
	return detector.ConnectResult{OK: true}, nil
}

func (f *fakeDetector) SetPower(on bool) error { return nil }

func (f *fakeDetector) SetPixel(index int, r, g, b uint8) error { return nil }

func (f *fakeDetector) SetPixelsBatch(updates []detector.PixelUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchedPixels = append(f.batchedPixels, updates)
	return nil
}

func (f *fakeDetector) StartMapping(req detector.StartMappingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.lastStart = req
	return nil
}

func (f *fakeDetector) ResumeMapping(fromIndex int, brightness float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCalls++
	f.resumeIndex = fromIndex
	return nil
}

func (f *fakeDetector) MappingStatus() (detector.MappingStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return detector.MappingStatus{}, f.statusErr
	}
	i := f.statusCalls
	f.statusCalls++
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeDetector) calls() (status, start, resume int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.startCalls, f.resumeCalls
}

type fakeCamera struct {
	mu       sync.Mutex
	released bool
}

func (f *fakeCamera) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
}

func (f *fakeCamera) wasReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func validStart() StartRequest {
	roi := geometry.NormalizedROI{X: 0.1, Y: 0.1, W: 0.5, H: 0.5}
	return StartRequest{
		ROI:        &roi,
		Brightness: 0.5,
		LEDPower:   true,
		VideoSize:  geometry.NewSize(1280, 720),
	}
}

// waitPhase polls the controller until the wanted phase or a timeout.
func waitPhase(t *testing.T, c *Controller, want Phase) Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		if snap.Phase == want {
			return snap
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %v (last: %v)", want, c.Snapshot().Phase)
	return Session{}
}

func TestStartValidation(t *testing.T) {
	roi := geometry.NormalizedROI{X: 0.1, Y: 0.1, W: 0.5, H: 0.5}
	badROI := geometry.NormalizedROI{X: 0.6, Y: 0.1, W: 0.5, H: 0.5}

	tests := []struct {
		name      string
		connected bool
		req       StartRequest
	}{
		{"not connected", false, validStart()},
		{"no roi", true, StartRequest{Brightness: 0.5, VideoSize: geometry.NewSize(1280, 720)}},
		{"no video size", true, StartRequest{ROI: &roi, Brightness: 0.5}},
		{"roi overflow", true, StartRequest{ROI: &badROI, Brightness: 0.5, VideoSize: geometry.NewSize(1280, 720)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := &fakeDetector{}
			c := NewController(det)
			c.SetConnected(tt.connected)

			err := c.Start(tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, start, _ := det.calls(); start != 0 {
				t.Fatal("no network call may be made on a validation failure")
			}
			if c.Snapshot().Phase != PhaseIdle {
				t.Fatalf("phase = %v, want idle", c.Snapshot().Phase)
			}
		})
	}
}

func TestStartReleasesCamera(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: false, Done: true, Coords: [][2]float64{{0.5, 0.5}}},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	cam := &fakeCamera{}
	c.SetCamera(cam)

	if err := c.Start(validStart()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !cam.wasReleased() {
		t.Fatal("camera must be released before start_mapping")
	}
	waitPhase(t, c, PhaseCompleted)
}

func TestPollUntilCompleted(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: true, Done: false, CurrentLED: 0},
		{Running: true, Done: false, CurrentLED: 1, Coords: [][2]float64{{0.2, 0.3}}},
		{Running: false, Done: true, Coords: [][2]float64{{0.2, 0.3}, {0, 0}, {0.8, 0.7}}, TotalLEDs: 3},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	if err := c.Start(validStart()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitPhase(t, c, PhaseCompleted)
	if len(snap.Coordinates) != 3 {
		t.Fatalf("coordinates = %d, want 3", len(snap.Coordinates))
	}
	if snap.TotalFound != 2 {
		t.Fatalf("TotalFound = %d, want 2 (sentinel excluded)", snap.TotalFound)
	}
	if !snap.Coordinates[1].IsSentinel() {
		t.Fatal("sentinel entry must be preserved in place")
	}
}

func TestErrorStatusTerminates(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: true, Done: false},
		{Running: false, Done: true, Status: detector.StatusError, Message: "Failed to access camera"},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	if err := c.Start(validStart()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := waitPhase(t, c, PhaseError)
	if snap.Message != "Failed to access camera" {
		t.Fatalf("message = %q", snap.Message)
	}
}

func TestPollTransportFailureSurfaces(t *testing.T) {
	det := &fakeDetector{statusErr: errors.New("connection refused")}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	if err := c.Start(validStart()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitPhase(t, c, PhaseError)
}

func TestCancelStopsPolling(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: true, Done: false},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	if err := c.Start(validStart()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	c.Cancel()

	calls, _, _ := det.calls()
	time.Sleep(20 * time.Millisecond)
	after, _, _ := det.calls()
	// One in-flight poll may still land after Cancel; none may be re-armed.
	if after > calls+1 {
		t.Fatalf("polling continued after cancel: %d -> %d", calls, after)
	}
}

func TestResumeKeepsEarlierCoordinates(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: true, Done: false, CurrentLED: 2},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Hour) // no poll lands during assertions
	c.SetConnected(true)

	if err := c.Restore(Session{
		Phase:        PhaseError,
		CurrentIndex: 2,
		Coordinates: []geometry.Point2D{
			{X: 0.2, Y: 0.3}, {X: 0.4, Y: 0.5}, {X: 0, Y: 0},
		},
	}); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if err := c.Resume(2, 0.5); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	defer c.Cancel()

	snap := c.Snapshot()
	if snap.Phase != PhaseRunning {
		t.Fatalf("phase = %v, want running", snap.Phase)
	}
	if len(snap.Coordinates) != 2 {
		t.Fatalf("coordinates = %d, want the 2 entries below the resume index", len(snap.Coordinates))
	}
	if snap.Coordinates[0] != (geometry.Point2D{X: 0.2, Y: 0.3}) {
		t.Fatalf("coordinates[0] = %+v", snap.Coordinates[0])
	}

	if _, _, resume := det.calls(); resume != 1 {
		t.Fatalf("resume calls = %d, want 1", resume)
	}
}

// After a resume the backend resets its status coordinate list and appends
// from the resumed index, so incoming coordinates must land at the resume
// offset with the kept prefix intact.
func TestResumeMergesCoordinatesAtOffset(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: true, Done: false, CurrentLED: 2, Coords: [][2]float64{{0.9, 0.9}}},
		{Running: false, Done: true, Coords: [][2]float64{{0.9, 0.9}, {0.8, 0.8}}},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	if err := c.Restore(Session{
		Phase:        PhaseError,
		CurrentIndex: 2,
		Coordinates: []geometry.Point2D{
			{X: 0.2, Y: 0.3}, {X: 0.4, Y: 0.5},
		},
	}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := c.Resume(2, 0.5); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	snap := waitPhase(t, c, PhaseCompleted)
	want := []geometry.Point2D{
		{X: 0.2, Y: 0.3}, {X: 0.4, Y: 0.5}, {X: 0.9, Y: 0.9}, {X: 0.8, Y: 0.8},
	}
	if len(snap.Coordinates) != len(want) {
		t.Fatalf("coordinates = %d, want %d", len(snap.Coordinates), len(want))
	}
	for i, w := range want {
		if snap.Coordinates[i] != w {
			t.Fatalf("coordinates[%d] = %+v, want %+v", i, snap.Coordinates[i], w)
		}
	}
	if snap.TotalFound != 4 {
		t.Fatalf("TotalFound = %d, want 4", snap.TotalFound)
	}
}

func TestResumeRequiresPriorProgress(t *testing.T) {
	det := &fakeDetector{}
	c := NewController(det)
	c.SetConnected(true)

	err := c.Resume(5, 0.5)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, _, resume := det.calls(); resume != 0 {
		t.Fatal("no network call may be made without prior progress")
	}
}

func TestListenersObserveTransitions(t *testing.T) {
	det := &fakeDetector{statuses: []detector.MappingStatus{
		{Running: false, Done: true, Coords: [][2]float64{{0.5, 0.5}}},
	}}
	c := NewController(det)
	c.SetPollInterval(time.Millisecond)
	c.SetConnected(true)

	var mu sync.Mutex
	var phases []Phase
	c.OnUpdate(func(s Session) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})

	if err := c.Start(validStart()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitPhase(t, c, PhaseCompleted)

	mu.Lock()
	defer mu.Unlock()
	if len(phases) < 2 || phases[0] != PhaseRunning || phases[len(phases)-1] != PhaseCompleted {
		t.Fatalf("observed phases = %v", phases)
	}
}
