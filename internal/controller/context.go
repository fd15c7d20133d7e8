package controller

import (
	"sync"

	"github.com/catdetector/companion/internal/geo"
	"github.com/catdetector/companion/pkg/core"
)

// ZoneContext holds the authoritative zone configuration, the last thresholds
// sent to the detector and the current display size.
type ZoneContext struct {
	mu      sync.RWMutex
	zones   core.ZoneConfig
	script  core.ScriptConfig
	display geo.Size
}

// NewZoneContext creates a ZoneContext with no zones and the given thresholds.
func NewZoneContext(script core.ScriptConfig) *ZoneContext {
	return &ZoneContext{
		zones:  core.ZoneConfig{ActivationAreas: []core.Zone{}},
		script: script,
	}
}

// Zones returns a copy of the current zone configuration.
func (zc *ZoneContext) Zones() core.ZoneConfig {
	zc.mu.RLock()
	defer zc.mu.RUnlock()
	return zc.zones.Clone()
}

// SetZones replaces the zone configuration.
func (zc *ZoneContext) SetZones(cfg core.ZoneConfig) {
	zc.mu.Lock()
	defer zc.mu.Unlock()
	zc.zones = cfg.Clone()
}

func (zc *ZoneContext) Script() core.ScriptConfig {
	zc.mu.RLock()
	defer zc.mu.RUnlock()
	return zc.script
}

func (zc *ZoneContext) ApplyScript(u core.ScriptUpdate) core.ScriptConfig {
	zc.mu.Lock()
	defer zc.mu.Unlock()
	zc.script = zc.script.Apply(u)
	return zc.script
}

func (zc *ZoneContext) Display() geo.Size {
	zc.mu.RLock()
	defer zc.mu.RUnlock()
	return zc.display
}

func (zc *ZoneContext) SetDisplay(s geo.Size) {
	zc.mu.Lock()
	defer zc.mu.Unlock()
	zc.display = s
}
