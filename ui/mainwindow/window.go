// Package mainwindow provides the main application window.
package mainwindow

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"led-mapper/internal/app"
	"led-mapper/internal/detector"
	"led-mapper/internal/mapfile"
	"led-mapper/internal/session"
	"led-mapper/internal/version"
	"led-mapper/pkg/geometry"
	uicanvas "led-mapper/ui/canvas"
	"led-mapper/ui/panels"
	"led-mapper/ui/prefs"
)

const appTitle = "LED Mapper"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app   fyne.App
	state *app.State
	det   detector.Client
	ctrl  *session.Controller
	prefs *prefs.Prefs

	cameraPanel *panels.CameraPanel
	drawCanvas  *uicanvas.DrawCanvas
	statusBar   *widget.Label
}

// New creates the main window and wires the panels together.
func New(fyneApp fyne.App, state *app.State, det detector.Client, ctrl *session.Controller, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow(appTitle)

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		det:    det,
		ctrl:   ctrl,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	win.Resize(fyne.NewSize(1200, 700))
	return mw
}

// setupUI creates the main layout: camera panel | drawing canvas.
func (mw *MainWindow) setupUI() {
	mw.drawCanvas = uicanvas.NewDrawCanvas(mw.sendBatch)
	mw.drawCanvas.SetStrokeWidth(mw.prefs.Float(prefs.KeyStrokeWidth, 3))

	mw.cameraPanel = panels.NewCameraPanel(mw.state, mw.det, mw.ctrl, mw.prefs)

	mw.statusBar = widget.NewLabel("Ready")

	split := container.NewHSplit(
		mw.cameraPanel.Container(),
		mw.drawCanvas,
	)
	split.SetOffset(0.45)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar),
		nil,
		nil,
		split,
	)
	mw.SetContent(content)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Mapping...", mw.onOpenMapping),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Mapping", mw.onSaveMapping),
		fyne.NewMenuItem("Save Mapping As...", mw.onSaveMappingAs),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	drawMenu := fyne.NewMenu("Draw",
		fyne.NewMenuItem("Clear Strokes", mw.onClearStrokes),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("All LEDs Off", mw.onAllOff),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, drawMenu, helpMenu))
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventSessionUpdated, func(data interface{}) {
		snap, ok := data.(session.Session)
		if !ok {
			return
		}
		switch snap.Phase {
		case session.PhaseCompleted:
			mw.drawCanvas.SetLEDs(snap.Coordinates)
			mw.state.SetModified(true)
			mw.updateStatus(fmt.Sprintf("Mapping complete: %d/%d LEDs located",
				snap.TotalFound, len(snap.Coordinates)))
		case session.PhaseError:
			mw.updateStatus("Mapping failed: " + snap.Message)
		}
	})

	mw.state.On(app.EventDeviceConnected, func(data interface{}) {
		if connected, ok := data.(bool); ok && connected {
			mw.updateStatus("Device connected")
		}
	})

	mw.state.On(app.EventMappingLoaded, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle(appTitle + " - " + filepath.Base(path))
			mw.updateStatus("Mapping loaded: " + path)
		}
	})

	mw.state.On(app.EventMappingSaved, func(data interface{}) {
		if path, ok := data.(string); ok {
			mw.SetTitle(appTitle + " - " + filepath.Base(path))
			mw.updateStatus("Mapping saved: " + path)
		}
	})

	mw.state.On(app.EventModified, func(data interface{}) {
		if modified, ok := data.(bool); ok && modified {
			title := mw.Title()
			if !strings.HasSuffix(title, "*") {
				mw.SetTitle(title + " *")
			}
		}
	})
}

// sendBatch forwards stroke-paint color updates to the device in one call.
func (mw *MainWindow) sendBatch(updates []detector.PixelUpdate) {
	go func() {
		if err := mw.det.SetPixelsBatch(updates); err != nil {
			log.Printf("Batch update failed: %v", err)
			mw.updateStatus(fmt.Sprintf("Device update failed: %v", err))
			return
		}
		mw.state.Emit(app.EventStrokesChanged, len(updates))
	}()
}

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir, "")
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir remembers the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefs.KeyLastDir, filepath.Dir(filePath))
	if err := mw.prefs.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

// Menu action handlers

func (mw *MainWindow) onOpenMapping() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.LoadMapping(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// LoadMapping imports a mapping file and restores it as a completed session.
func (mw *MainWindow) LoadMapping(path string) error {
	snap, f, err := mapfile.Load(path)
	if err != nil {
		return err
	}

	roi, err := geometryROI(snap)
	if err != nil {
		return err
	}
	restored := session.Session{
		Phase:       session.PhaseCompleted,
		VideoSize:   snap.VideoSize,
		ROI:         roi,
		HasROI:      true,
		Coordinates: snap.Coordinates,
	}
	restored.TotalFound = restored.ValidCount()

	if err := mw.ctrl.Restore(restored); err != nil {
		return err
	}

	mw.drawCanvas.SetLEDs(snap.Coordinates)
	mw.state.SetMappingPath(path)
	mw.state.SetModified(false)
	mw.prefs.SetString(prefs.KeyLastMapping, path)
	mw.state.Emit(app.EventMappingLoaded, path)
	log.Printf("Mapping loaded: %s (%d LEDs, %d valid)",
		path, f.Metadata.TotalLEDs, f.Metadata.ValidLEDs)
	return nil
}

func (mw *MainWindow) onSaveMapping() {
	path := mw.state.MappingFile()
	if path == "" {
		mw.onSaveMappingAs()
		return
	}
	if err := mw.saveMapping(path); err != nil {
		dialog.ShowError(err, mw.Window)
	}
}

func (mw *MainWindow) onSaveMappingAs() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != ".json" {
			path += ".json"
		}
		mw.saveLastDir(path)
		if err := mw.saveMapping(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("mapping.json")
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// saveMapping exports the current session to a mapping file.
func (mw *MainWindow) saveMapping(path string) error {
	snap := mw.ctrl.Snapshot()
	if len(snap.Coordinates) == 0 {
		return fmt.Errorf("no mapping to save; run or load one first")
	}

	rect, err := geometry.NormalizedROIToIntrinsicRect(snap.ROI, snap.VideoSize)
	if err != nil {
		return fmt.Errorf("mapping has no usable ROI: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := mapfile.Save(path, mapfile.Snapshot{
		Name:        name,
		Coordinates: snap.Coordinates,
		ROI:         rect,
		VideoSize:   snap.VideoSize,
	}); err != nil {
		return err
	}

	mw.state.SetMappingPath(path)
	mw.state.SetModified(false)
	mw.prefs.SetString(prefs.KeyLastMapping, path)
	mw.state.Emit(app.EventMappingSaved, path)
	return nil
}

func (mw *MainWindow) onClearStrokes() {
	mw.drawCanvas.Clear()
	mw.updateStatus("Strokes cleared")
}

func (mw *MainWindow) onAllOff() {
	go func() {
		if err := mw.det.SetPower(false); err != nil {
			mw.updateStatus(fmt.Sprintf("Power off failed: %v", err))
			return
		}
		mw.state.SetLEDPower(false)
		mw.updateStatus("All LEDs off")
	}()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About",
		fmt.Sprintf("%s %s\n\nCamera-based LED strip mapping and painting.", appTitle, version.Version),
		mw.Window)
}

// geometryROI converts a mapping-file snapshot's intrinsic ROI into the
// normalized form the session keeps.
func geometryROI(snap mapfile.Snapshot) (geometry.NormalizedROI, error) {
	return geometry.IntrinsicRectToNormalizedROI(snap.ROI, snap.VideoSize)
}
