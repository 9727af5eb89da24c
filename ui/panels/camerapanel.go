// Package panels contains the control panels of the main window.
package panels

import (
	"fmt"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"led-mapper/internal/app"
	"led-mapper/internal/camera"
	"led-mapper/internal/detector"
	"led-mapper/internal/session"
	uicanvas "led-mapper/ui/canvas"
	"led-mapper/ui/prefs"
)

const previewInterval = 50 * time.Millisecond

// CameraPanel hosts the live camera preview, the ROI selection, and the
// mapping run controls.
type CameraPanel struct {
	state *app.State
	det   detector.Client
	ctrl  *session.Controller
	prefs *prefs.Prefs

	preview *uicanvas.CameraPreview

	connectBtn *widget.Button
	powerCheck *widget.Check
	brightness *widget.Slider
	startBtn   *widget.Button
	resumeBtn  *widget.Button
	cancelBtn  *widget.Button
	statusLbl  *widget.Label
	progress   *widget.ProgressBar

	mu          sync.Mutex
	capture     *camera.Capture
	stopPreview chan struct{}
	opening     bool

	container *fyne.Container
}

// NewCameraPanel builds the panel and starts the camera preview.
func NewCameraPanel(state *app.State, det detector.Client, ctrl *session.Controller, p *prefs.Prefs) *CameraPanel {
	cp := &CameraPanel{
		state:   state,
		det:     det,
		ctrl:    ctrl,
		prefs:   p,
		preview: uicanvas.NewCameraPreview(),
	}

	cp.connectBtn = widget.NewButton("Connect", cp.onConnect)
	cp.powerCheck = widget.NewCheck("LED power", cp.onPowerToggle)
	cp.powerCheck.Disable()

	cp.brightness = widget.NewSlider(0.1, 1.0)
	cp.brightness.Step = 0.05
	cp.brightness.Value = p.Float(prefs.KeyBrightness, 0.5)
	cp.brightness.OnChangeEnded = func(v float64) {
		p.SetFloat(prefs.KeyBrightness, v)
	}

	cp.startBtn = widget.NewButton("Start Mapping", cp.onStart)
	cp.resumeBtn = widget.NewButton("Resume", cp.onResume)
	cp.cancelBtn = widget.NewButton("Cancel", cp.onCancel)
	cp.resumeBtn.Disable()
	cp.cancelBtn.Disable()

	cp.statusLbl = widget.NewLabel("Drag on the preview to select the LED region")
	cp.statusLbl.Wrapping = fyne.TextWrapWord
	cp.progress = widget.NewProgressBar()
	cp.progress.Hide()

	controls := container.NewVBox(
		container.NewGridWithColumns(2, cp.connectBtn, cp.powerCheck),
		widget.NewLabel("Mapping brightness"),
		cp.brightness,
		container.NewGridWithColumns(3, cp.startBtn, cp.resumeBtn, cp.cancelBtn),
		cp.progress,
		cp.statusLbl,
	)
	cp.container = container.NewBorder(nil, controls, nil, nil, cp.preview)

	state.On(app.EventSessionUpdated, func(data interface{}) {
		if snap, ok := data.(session.Session); ok {
			cp.onSessionUpdate(snap)
		}
	})

	cp.startPreview()
	return cp
}

// Container returns the panel's root object.
func (cp *CameraPanel) Container() *fyne.Container {
	return cp.container
}

// Preview exposes the embedded camera preview widget.
func (cp *CameraPanel) Preview() *uicanvas.CameraPreview {
	return cp.preview
}

// Close stops the preview loop and releases the camera.
func (cp *CameraPanel) Close() {
	cp.stopPreviewLoop()
}

// startPreview opens the camera in the background and begins the frame loop.
// Open retries internally, which covers waiting for the backend to hand the
// device back after a mapping run. The loop ends on its own once the session
// controller releases the capture: Frame starts returning errors.
func (cp *CameraPanel) startPreview() {
	cp.mu.Lock()
	if cp.opening {
		cp.mu.Unlock()
		return
	}
	cp.opening = true
	if cp.stopPreview != nil {
		close(cp.stopPreview)
		cp.stopPreview = nil
	}
	cp.mu.Unlock()

	go func() {
		index := cp.prefs.Int(prefs.KeyCameraIndex, 0)
		cap, err := camera.Open(index)

		cp.mu.Lock()
		cp.opening = false
		if err != nil {
			cp.mu.Unlock()
			log.Printf("Camera preview unavailable: %v", err)
			cp.statusLbl.SetText(fmt.Sprintf("Camera unavailable: %v", err))
			return
		}
		stop := make(chan struct{})
		cp.capture = cap
		cp.stopPreview = stop
		cp.mu.Unlock()

		cp.ctrl.SetCamera(cap)

		size := cap.Size()
		ticker := time.NewTicker(previewInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			frame, err := cap.Frame()
			if err != nil {
				// The controller released the device for a mapping run.
				cp.mu.Lock()
				if cp.stopPreview == stop {
					cp.stopPreview = nil
					cp.capture = nil
				}
				cp.mu.Unlock()
				cp.preview.ClearFrame()
				return
			}
			cp.preview.SetFrame(frame, size)
		}
	}()
}

func (cp *CameraPanel) stopPreviewLoop() {
	cp.mu.Lock()
	stop := cp.stopPreview
	cap := cp.capture
	cp.stopPreview = nil
	cp.capture = nil
	cp.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if cap != nil {
		cp.ctrl.SetCamera(nil)
		cap.Release()
	}
}

func (cp *CameraPanel) onConnect() {
	cp.connectBtn.Disable()
	go func() {
		port := cp.prefs.String(prefs.KeySerialPort, "")
		baud := cp.prefs.Int(prefs.KeyBaud, 115200)
		res, err := cp.det.Connect(port, baud)
		if err != nil {
			log.Printf("Device connect failed: %v", err)
			cp.statusLbl.SetText(fmt.Sprintf("Connect failed: %v", err))
			cp.connectBtn.Enable()
			return
		}
		cp.state.SetConnected(true, res.Port, res.Baud)
		cp.ctrl.SetConnected(true)
		cp.connectBtn.SetText(fmt.Sprintf("Connected (%s)", res.Port))
		cp.powerCheck.Enable()
		cp.statusLbl.SetText(fmt.Sprintf("Device connected on %s @ %d", res.Port, res.Baud))
	}()
}

func (cp *CameraPanel) onPowerToggle(on bool) {
	go func() {
		if err := cp.det.SetPower(on); err != nil {
			log.Printf("LED power toggle failed: %v", err)
			cp.statusLbl.SetText(fmt.Sprintf("Power toggle failed: %v", err))
			return
		}
		cp.state.SetLEDPower(on)
	}()
}

func (cp *CameraPanel) onStart() {
	roi, ok := cp.preview.NormalizedROI()
	if !ok {
		cp.statusLbl.SetText("Select an ROI on the preview first")
		return
	}
	req := session.StartRequest{
		ROI:        &roi,
		Brightness: cp.brightness.Value,
		LEDPower:   cp.state.PowerOn(),
		VideoSize:  cp.preview.Intrinsic(),
	}

	cp.startBtn.Disable()
	go func() {
		// The controller releases our capture before calling the backend;
		// the preview loop notices and winds itself down. On a validation
		// error nothing is released and the preview keeps running.
		if err := cp.ctrl.Start(req); err != nil {
			cp.statusLbl.SetText(err.Error())
			cp.startBtn.Enable()
		}
	}()
}

func (cp *CameraPanel) onResume() {
	snap := cp.ctrl.Snapshot()
	from := snap.CurrentIndex
	if from <= 0 {
		from = len(snap.Coordinates)
	}
	if from <= 0 {
		cp.statusLbl.SetText("Nothing to resume")
		return
	}

	cp.resumeBtn.Disable()
	brightness := cp.brightness.Value
	go func() {
		if err := cp.ctrl.Resume(from, brightness); err != nil {
			cp.statusLbl.SetText(err.Error())
			cp.resumeBtn.Enable()
		}
	}()
}

func (cp *CameraPanel) onCancel() {
	cp.ctrl.Cancel()
	cp.cancelBtn.Disable()
	cp.startBtn.Enable()
	cp.resumeBtn.Enable()
	cp.statusLbl.SetText("Mapping cancelled; the backend run keeps going until restarted")
	cp.startPreview()
}

// onSessionUpdate reflects controller snapshots into the panel widgets.
// Called from the polling goroutine.
func (cp *CameraPanel) onSessionUpdate(snap session.Session) {
	cp.preview.SetDots(snap.Coordinates)

	switch snap.Phase {
	case session.PhaseRunning:
		cp.cancelBtn.Enable()
		cp.startBtn.Disable()
		cp.resumeBtn.Disable()
		cp.progress.Show()
		if n := len(snap.Coordinates); n > 0 && snap.CurrentIndex >= 0 {
			cp.progress.SetValue(float64(snap.CurrentIndex) / float64(n))
		}
		msg := fmt.Sprintf("Mapping LED %d (%d found", snap.CurrentIndex, snap.TotalFound)
		if snap.ConsecutiveFailures > 0 {
			msg += fmt.Sprintf(", %d misses in a row", snap.ConsecutiveFailures)
		}
		msg += ")"
		cp.statusLbl.SetText(msg)

	case session.PhaseCompleted:
		cp.cancelBtn.Disable()
		cp.startBtn.Enable()
		cp.resumeBtn.Disable()
		cp.progress.Hide()
		cp.statusLbl.SetText(fmt.Sprintf("Mapping complete: %d/%d LEDs located",
			snap.TotalFound, len(snap.Coordinates)))
		cp.startPreview()

	case session.PhaseError:
		cp.cancelBtn.Disable()
		cp.startBtn.Enable()
		cp.resumeBtn.Enable()
		cp.progress.Hide()
		cp.statusLbl.SetText("Mapping failed: " + snap.Message)
		cp.startPreview()

	case session.PhaseIdle:
		cp.progress.Hide()
	}
}
