// Package editor holds the zone-editing session: the operator opens it on the
// current configuration, clicks vertices, closes polygons and either saves the
// result or throws it away.
package editor

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/pkg/core"
)

var (
	ErrNotEditing     = errors.New("zone editor is not open")
	ErrAlreadyEditing = errors.New("zone editor is already open")
)

// State is the editor's top-level mode.
type State int

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	default:
		return "unknown"
	}
}

// View is a snapshot of the editor. Slices are copies.
type View struct {
	State   State
	Zones   []core.Zone
	Current []core.Point
	Crop    *core.CropRegion
}

// SaveResult is produced when an editing session is committed.
type SaveResult struct {
	Config core.ZoneConfig
	// DroppedPoints counts vertices of an unfinished zone that were left out.
	DroppedPoints int
}

// Listener is called after every state transition, outside the editor lock.
type Listener func(prev, next State)

// Editor is safe for concurrent use.
type Editor struct {
	mu        sync.Mutex
	state     State
	zones     []core.Zone
	current   []core.Point
	crop      *core.CropRegion
	logger    *slog.Logger
	listeners []Listener
}

// New creates an idle editor.
func New(logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{logger: logger}
}

// OnTransition registers l for state transitions.
func (e *Editor) OnTransition(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// EnterEditing opens a session on a copy of initial.
func (e *Editor) EnterEditing(initial core.ZoneConfig) error {
	e.mu.Lock()
	if e.state == Editing {
		e.mu.Unlock()
		return ErrAlreadyEditing
	}
	cfg := initial.Clone()
	e.zones = cfg.ActivationAreas
	e.crop = cfg.CropRegion
	e.current = nil
	e.state = Editing
	e.mu.Unlock()

	e.logger.Debug("zone editor opened", "zones", len(cfg.ActivationAreas))
	e.notify(Idle, Editing)
	return nil
}

// Load replaces the completed zones and the crop region, opening the editor
// when it is idle. An open session keeps its zone under construction; Load
// returns how many of its points were kept.
func (e *Editor) Load(cfg core.ZoneConfig) int {
	cfg = cfg.Clone()

	e.mu.Lock()
	prev := e.state
	e.zones = cfg.ActivationAreas
	e.crop = cfg.CropRegion
	if prev != Editing {
		e.current = nil
	}
	e.state = Editing
	kept := len(e.current)
	e.mu.Unlock()

	e.logger.Debug("zone editor loaded", "zones", len(cfg.ActivationAreas), "kept", kept)
	if prev != Editing {
		e.notify(prev, Editing)
	}
	return kept
}

// AddPoint converts a display-space click to native pixels and appends it to
// the zone under construction.
func (e *Editor) AddPoint(click geo.DisplayPoint, t geo.Transform) (core.Point, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return core.Point{}, ErrNotEditing
	}
	p := t.ToNative(click)
	e.current = append(e.current, p)
	return p, nil
}

// FinishZone closes the zone under construction. It is refused, with nothing
// changed, when fewer than three points have been placed.
func (e *Editor) FinishZone() (core.Zone, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing {
		return nil, ErrNotEditing
	}
	if len(e.current) < core.MinZonePoints {
		return nil, &core.ValidationError{Field: "zone", Reason: "zone must have at least 3 points"}
	}

	zone := core.Zone(e.current).Clone()
	if !geo.ZoneIsSimple(zone) {
		e.logger.Warn("zone boundary crosses itself", "points", len(zone))
	}
	e.zones = append(e.zones, zone)
	e.current = nil
	return zone.Clone(), nil
}

// UndoPoint removes the most recent point of the zone under construction.
// It reports whether a point was removed.
func (e *Editor) UndoPoint() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Editing || len(e.current) == 0 {
		return false
	}
	e.current = e.current[:len(e.current)-1]
	return true
}

// ClearAll empties both the completed zones and the zone under construction.
func (e *Editor) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zones = nil
	e.current = nil
}

// Cancel closes the session and discards everything done in it.
func (e *Editor) Cancel() error {
	e.mu.Lock()
	if e.state != Editing {
		e.mu.Unlock()
		return ErrNotEditing
	}
	e.reset()
	e.mu.Unlock()

	e.logger.Debug("zone editor cancelled")
	e.notify(Editing, Idle)
	return nil
}

// Save closes the session and returns the completed zones with the crop
// region the session was opened with. An unfinished zone is not included.
func (e *Editor) Save() (SaveResult, error) {
	e.mu.Lock()
	if e.state != Editing {
		e.mu.Unlock()
		return SaveResult{}, ErrNotEditing
	}
	result := SaveResult{
		Config: core.ZoneConfig{
			ActivationAreas: core.CloneZones(e.zones),
			CropRegion:      e.crop,
		}.Clone(),
		DroppedPoints: len(e.current),
	}
	e.reset()
	e.mu.Unlock()

	if result.DroppedPoints > 0 {
		e.logger.Warn("unfinished zone dropped on save", "points", result.DroppedPoints)
	}
	e.logger.Debug("zone editor saved", "zones", len(result.Config.ActivationAreas))
	e.notify(Editing, Idle)
	return result, nil
}

// View returns a snapshot of the editor.
func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := View{
		State:   e.state,
		Zones:   core.CloneZones(e.zones),
		Current: append([]core.Point(nil), e.current...),
	}
	if e.crop != nil {
		crop := *e.crop
		v.Crop = &crop
	}
	return v
}

// State returns the current mode.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) reset() {
	e.state = Idle
	e.zones = nil
	e.current = nil
	e.crop = nil
}

func (e *Editor) notify(prev, next State) {
	e.mu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()
	for _, l := range listeners {
		l(prev, next)
	}
}
