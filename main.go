// Package main provides the entry point for the LED Mapper application.
package main

import (
	"log"
	"os"

	fyneapp "fyne.io/fyne/v2/app"

	"led-mapper/internal/app"
	"led-mapper/internal/detector"
	"led-mapper/internal/session"
	"led-mapper/internal/version"
	"led-mapper/ui/mainwindow"
	"led-mapper/ui/prefs"
)

const appTitle = "LED Mapper"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, version.Version)

	appPrefs := prefs.Load()
	appState := app.NewState()

	baseURL := appPrefs.String(prefs.KeyBackendURL, detector.DefaultBaseURL)
	det := detector.NewHTTPClient(baseURL)
	ctrl := session.NewController(det)
	ctrl.OnUpdate(appState.SetSession)

	fyneApp := fyneapp.NewWithID("io.ledmapper.app")
	fyneApp.Settings().SetTheme(&app.LEDMapperTheme{})

	win := mainwindow.New(fyneApp, appState, det, ctrl, appPrefs)

	// An optional mapping file argument is loaded at startup.
	if len(os.Args) > 1 {
		if err := win.LoadMapping(os.Args[1]); err != nil {
			log.Printf("Failed to load mapping %s: %v", os.Args[1], err)
		}
	}

	win.ShowAndRun()
}
