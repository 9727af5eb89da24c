// Package app holds shared application state and its change events.
package app

import (
	"sync"

	"led-mapper/internal/session"
)

// State is the mutable state shared between the camera panel, the drawing
// canvas, and the main window. Components mutate it through setters, which
// emit events so the others can react without holding references to each
// other.
type State struct {
	mu sync.RWMutex

	// Device link (serial, behind the detection backend)
	Connected bool
	Port      string
	Baud      int
	LEDPower  bool

	// Last mapping session snapshot published by the controller.
	Session session.Session

	// Mapping file currently loaded or last saved.
	MappingPath string
	Modified    bool

	listeners map[EventType][]EventListener
}

// EventType identifies application events.
type EventType int

const (
	EventDeviceConnected EventType = iota
	EventPowerChanged
	EventSessionUpdated
	EventMappingLoaded
	EventMappingSaved
	EventStrokesChanged
	EventModified
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// NewState creates an empty application state.
func NewState() *State {
	return &State{
		Baud:      115200,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// SetConnected records the serial device link and emits EventDeviceConnected.
func (s *State) SetConnected(connected bool, port string, baud int) {
	s.mu.Lock()
	s.Connected = connected
	s.Port = port
	s.Baud = baud
	s.mu.Unlock()
	s.Emit(EventDeviceConnected, connected)
}

// IsConnected reports whether the serial device link is up.
func (s *State) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Connected
}

// SetLEDPower records the all-LEDs power state and emits EventPowerChanged.
func (s *State) SetLEDPower(on bool) {
	s.mu.Lock()
	s.LEDPower = on
	s.mu.Unlock()
	s.Emit(EventPowerChanged, on)
}

// PowerOn reports the last applied all-LEDs power state.
func (s *State) PowerOn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LEDPower
}

// SetSession stores the latest session snapshot and emits
// EventSessionUpdated.
func (s *State) SetSession(snap session.Session) {
	s.mu.Lock()
	s.Session = snap
	s.mu.Unlock()
	s.Emit(EventSessionUpdated, snap)
}

// CurrentSession returns the last published session snapshot.
func (s *State) CurrentSession() session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Session
}

// SetMappingPath records the mapping file in use.
func (s *State) SetMappingPath(path string) {
	s.mu.Lock()
	s.MappingPath = path
	s.mu.Unlock()
}

// MappingFile returns the mapping file path in use, if any.
func (s *State) MappingFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.MappingPath
}

// SetModified marks unsaved mapping changes and emits EventModified.
func (s *State) SetModified(modified bool) {
	s.mu.Lock()
	s.Modified = modified
	s.mu.Unlock()
	s.Emit(EventModified, modified)
}
