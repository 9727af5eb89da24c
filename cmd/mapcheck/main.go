// Command mapcheck validates an LED mapping file and prints its contents.
// The mapping can come from a local file or be fetched from a running
// detection backend.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"led-mapper/internal/detector"
	"led-mapper/internal/mapfile"
	"led-mapper/internal/paint"
)

func main() {
	path := flag.String("file", "", "Path to mapping file (JSON)")
	backend := flag.String("backend", "", "Fetch the mapping from a detection backend URL instead")
	dump := flag.Bool("dump", false, "Print every LED position")
	flag.Parse()

	if *path == "" && *backend == "" {
		fmt.Println("Usage: mapcheck -file <mapping.json> [-dump]")
		fmt.Println("       mapcheck -backend http://127.0.0.1:8000 [-dump]")
		os.Exit(1)
	}

	var (
		snap mapfile.Snapshot
		f    *mapfile.File
		err  error
	)
	if *backend != "" {
		snap, f, err = fetchFromBackend(*backend)
	} else {
		snap, f, err = mapfile.Load(*path)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid mapping: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Mapping: %s\n", f.Metadata.Name)
	fmt.Printf("Created: %s\n", f.Metadata.Created)
	fmt.Printf("Format version: %d, canvas %dx%d\n", f.Version, f.Canvas.Width, f.Canvas.Height)
	fmt.Printf("LEDs: %d total, %d located (%d gaps)\n",
		f.Metadata.TotalLEDs, f.Metadata.ValidLEDs, f.Metadata.TotalLEDs-f.Metadata.ValidLEDs)
	fmt.Printf("Canvas ROI: %.1f,%.1f %.1fx%.1f\n", f.ROI.X, f.ROI.Y, f.ROI.Width, f.ROI.Height)
	fmt.Printf("Capture ROI: %.0f,%.0f %.0fx%.0f in a %.0fx%.0f frame\n",
		f.OriginalROI.X, f.OriginalROI.Y, f.OriginalROI.Width, f.OriginalROI.Height,
		f.OriginalROI.VideoWidth, f.OriginalROI.VideoHeight)

	engine := paint.NewEngine()
	engine.SetLEDs(snap.Coordinates)
	fmt.Printf("Paint proximity threshold: %.4f\n", engine.Threshold())

	if *dump {
		fmt.Println("\nLED positions (normalized):")
		for i, c := range snap.Coordinates {
			if c.IsSentinel() {
				fmt.Printf("  %4d: not found\n", i)
				continue
			}
			fmt.Printf("  %4d: %.4f, %.4f\n", i, c.X, c.Y)
		}
	}
}

// fetchFromBackend downloads the backend's own mapping.json document and
// converts it to the portable shape for display.
func fetchFromBackend(baseURL string) (mapfile.Snapshot, *mapfile.File, error) {
	client := detector.NewHTTPClient(baseURL)
	raw, err := client.LoadMapping()
	if err != nil {
		return mapfile.Snapshot{}, nil, err
	}
	var doc mapfile.BackendDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return mapfile.Snapshot{}, nil, fmt.Errorf("backend mapping is not valid JSON: %w", err)
	}
	snap, err := mapfile.ImportBackend(&doc)
	if err != nil {
		return mapfile.Snapshot{}, nil, err
	}
	f, err := mapfile.Export(snap)
	if err != nil {
		return mapfile.Snapshot{}, nil, err
	}
	return snap, f, nil
}
