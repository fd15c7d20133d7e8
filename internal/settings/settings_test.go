package settings

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/catdetector/companion/internal/config"
	"github.com/catdetector/companion/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	cfg := config.SettingsConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "settings.db")},
	}
	s, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("nothing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put("k", []byte(`{"a":1}`)))
			require.NoError(t, s.Put("k", []byte(`{"a":2}`)))

			v, ok, err := s.Get("k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"a":2}`, string(v))
		})
	}
}

func TestBroker_FirstRunAndSave(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := LoadBroker(s)
			require.NoError(t, err)
			assert.False(t, ok)

			want := core.BrokerConfig{Host: "192.168.1.20", Port: 9001}
			require.NoError(t, SaveBroker(s, want))

			got, ok, err := LoadBroker(s)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, want, got)

			raw, _, err := s.Get(KeyBroker)
			require.NoError(t, err)
			assert.JSONEq(t, `{"host":"192.168.1.20","port":9001}`, string(raw))
		})
	}
}

func TestSaveBroker_RejectsInvalid(t *testing.T) {
	s := NewMemoryStore()
	err := SaveBroker(s, core.BrokerConfig{Host: "", Port: 9001})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	_, ok, _ := s.Get(KeyBroker)
	assert.False(t, ok)
}

func TestLoadBroker_Corrupt(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(KeyBroker, []byte(`{"host":"","port":0}`)))

	_, ok, err := LoadBroker(s)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrCorrupt))

	require.NoError(t, s.Put(KeyBroker, []byte(`not json`)))
	_, _, err = LoadBroker(s)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestZoneConfig_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := core.ZoneConfig{
				ActivationAreas: []core.Zone{{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}},
				CropRegion:      &core.CropRegion{X: 0, Y: 0, W: 640, H: 480},
			}
			require.NoError(t, SaveZoneConfig(s, want))

			got, ok, err := LoadZoneConfig(s)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}
}

func TestZoneConfig_EmptyIsStoredAsEmptyList(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, SaveZoneConfig(s, core.ZoneConfig{}))

	raw, _, err := s.Get(KeyZoneConfig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"activation_areas":[],"crop_region":null}`, string(raw))

	got, ok, err := LoadZoneConfig(s)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got.ActivationAreas)
	assert.Empty(t, got.ActivationAreas)
}

func TestLoadZoneConfig_RejectsShortZone(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put(KeyZoneConfig, []byte(`{"activation_areas":[[{"x":1,"y":1}]]}`)))

	_, ok, err := LoadZoneConfig(s)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestGormStore_PersistsAcrossReopen(t *testing.T) {
	cfg := config.SettingsConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "settings.db")},
	}

	s1, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, SaveBroker(s1, core.BrokerConfig{Host: "pi.local", Port: 9001}))
	require.NoError(t, s1.Close())

	s2, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	got, ok, err := LoadBroker(s2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "pi.local", got.Host)
}

func TestNewStore_UnknownType(t *testing.T) {
	_, err := NewStore(config.SettingsConfig{Type: "etcd"}, zerolog.Nop())
	assert.Error(t, err)
}
