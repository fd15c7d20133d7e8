package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"Setting", &Setting{}, "settings"},
		{"HealthSample", &HealthSample{}, "health_samples"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels(t *testing.T) {
	assert.Len(t, DatabaseModels, 2)
}

func TestHealthSampleJSON(t *testing.T) {
	s := HealthSample{
		Time:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Status:   "Connected",
		ClientID: "cat-detector-gui-1a2b3c4d",
		Zones:    2,
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "Connected", m["status"])
	assert.Equal(t, "cat-detector-gui-1a2b3c4d", m["clientId"])
	assert.Equal(t, float64(2), m["zones"])
}
