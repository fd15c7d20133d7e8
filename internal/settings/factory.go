package settings

import (
	"fmt"

	"github.com/catdetector/companion/internal/config"
	"github.com/catdetector/companion/internal/database"
	"github.com/rs/zerolog"
)

// NewStore creates and initializes a store based on configuration
func NewStore(cfg config.SettingsConfig, log zerolog.Logger) (Store, error) {
	var store Store

	switch cfg.Type {
	case "memory":
		store = NewMemoryStore()
	case "sqlite", "postgres":
		m := database.NewManager(log)
		if err := m.Connect(cfg); err != nil {
			return nil, err
		}
		store = NewGormStore(m.DB)
	default:
		return nil, fmt.Errorf("unknown settings type: %s", cfg.Type)
	}

	if err := store.Init(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
