package database

import (
	"path/filepath"
	"testing"

	"github.com/catdetector/companion/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	m := NewManager(zerolog.Nop())

	err := m.Connect(config.SettingsConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: path}})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.IsValid)
	assert.False(t, m.UsingFallback)
	assert.Equal(t, "sqlite", m.DB.Dialector.Name())
	assert.FileExists(t, path)
}

func TestConnect_SQLiteInMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())

	require.NoError(t, m.Connect(config.SettingsConfig{Type: "sqlite"}))
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.IsValid)
}

func TestConnect_PostgresFallsBackToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")
	m := NewManager(zerolog.Nop())

	err := m.Connect(config.SettingsConfig{
		Type:   "postgres",
		SQLite: config.SQLiteConfig{Path: path},
		Postgres: config.PostgresConfig{
			Host: "127.0.0.1", Port: "1", Username: "u", Password: "p", Database: "d",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	assert.True(t, m.UsingFallback)
	assert.Equal(t, "sqlite", m.DB.Dialector.Name())
}

func TestConnect_UnknownType(t *testing.T) {
	m := NewManager(zerolog.Nop())
	err := m.Connect(config.SettingsConfig{Type: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown database type")
}

func TestClose_NotConnected(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.NoError(t, m.Close())
}
