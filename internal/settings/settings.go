// Package settings persists the companion's local state: the broker
// descriptor and the last saved zone configuration.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/catdetector/companion/pkg/core"
)

// Keys under which values are stored.
const (
	KeyBroker     = "brokerConfig"
	KeyZoneConfig = "zoneConfig"
)

// ErrCorrupt is returned when a stored value cannot be decoded.
var ErrCorrupt = errors.New("stored setting is corrupt")

// Store is a small key/value persistence interface.
type Store interface {
	Init() error
	Close() error

	// Get returns the raw JSON stored under key. ok is false when nothing is stored.
	Get(key string) (value []byte, ok bool, err error)
	Put(key string, value []byte) error
}

// LoadBroker reads the broker descriptor. ok is false on first run.
func LoadBroker(s Store) (core.BrokerConfig, bool, error) {
	var b core.BrokerConfig
	ok, err := load(s, KeyBroker, &b)
	if err != nil || !ok {
		return core.BrokerConfig{}, false, err
	}
	if err := b.Validate(); err != nil {
		return core.BrokerConfig{}, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, KeyBroker, err)
	}
	return b, true, nil
}

// SaveBroker validates and stores the broker descriptor.
func SaveBroker(s Store, b core.BrokerConfig) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return save(s, KeyBroker, b)
}

// LoadZoneConfig reads the last saved zone configuration.
func LoadZoneConfig(s Store) (core.ZoneConfig, bool, error) {
	var cfg core.ZoneConfig
	ok, err := load(s, KeyZoneConfig, &cfg)
	if err != nil || !ok {
		return core.ZoneConfig{}, false, err
	}
	for i, z := range cfg.ActivationAreas {
		if len(z) < core.MinZonePoints {
			return core.ZoneConfig{}, false, fmt.Errorf("%w: %s: zone %d has %d points", ErrCorrupt, KeyZoneConfig, i, len(z))
		}
	}
	if cfg.ActivationAreas == nil {
		cfg.ActivationAreas = []core.Zone{}
	}
	return cfg, true, nil
}

// SaveZoneConfig stores the zone configuration.
func SaveZoneConfig(s Store, cfg core.ZoneConfig) error {
	if cfg.ActivationAreas == nil {
		cfg.ActivationAreas = []core.Zone{}
	}
	return save(s, KeyZoneConfig, cfg)
}

func load(s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func save(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.Put(key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
