package codec

import (
	"errors"
	"testing"

	"github.com/catdetector/companion/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestEncodeScriptUpdate(t *testing.T) {
	tests := []struct {
		name   string
		update core.ScriptUpdate
		want   string
	}{
		{"confidence only", core.ScriptUpdate{Confidence: ptr(0.7)}, `{"confidence":0.7}`},
		{"cooldown only", core.ScriptUpdate{Cooldown: ptr(15)}, `{"cooldown":15}`},
		{"both", core.ScriptUpdate{Confidence: ptr(0.55), Cooldown: ptr(10)}, `{"confidence":0.55,"cooldown":10}`},
		{"zero cooldown kept", core.ScriptUpdate{Cooldown: ptr(0)}, `{"cooldown":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeScriptUpdate(tt.update)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncodeScriptUpdate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		update core.ScriptUpdate
		field  string
	}{
		{"empty", core.ScriptUpdate{}, "script"},
		{"confidence zero", core.ScriptUpdate{Confidence: ptr(0.0)}, "confidence"},
		{"confidence above one", core.ScriptUpdate{Confidence: ptr(1.2)}, "confidence"},
		{"negative cooldown", core.ScriptUpdate{Cooldown: ptr(-1)}, "cooldown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeScriptUpdate(tt.update)
			assert.Nil(t, data)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestEncodeZoneConfig(t *testing.T) {
	cfg := core.ZoneConfig{
		ActivationAreas: []core.Zone{{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}},
		CropRegion:      &core.CropRegion{X: 0, Y: 0, W: 100, H: 50},
	}

	data, err := EncodeZoneConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t,
		`{"activation_areas":[[[1,2],[3,4],[5,6]]],"crop_region":{"x":0,"y":0,"w":100,"h":50}}`,
		string(data))
}

func TestEncodeZoneConfig_Empty(t *testing.T) {
	data, err := EncodeZoneConfig(core.ZoneConfig{})
	require.NoError(t, err)
	assert.Equal(t, `{"activation_areas":[],"crop_region":null}`, string(data))
}

func TestEncodeZoneConfig_RefusesShortZone(t *testing.T) {
	cfg := core.ZoneConfig{ActivationAreas: []core.Zone{
		{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}},
		{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}}
	_, err := EncodeZoneConfig(cfg)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "activation_areas[1]", verr.Field)
}

func TestEncodeServo(t *testing.T) {
	data, err := EncodeServo(core.ServoActivate)
	require.NoError(t, err)
	assert.Equal(t, "activate", string(data))

	data, err = EncodeServo(core.ServoDeactivate)
	require.NoError(t, err)
	assert.Equal(t, "deactivate", string(data))

	_, err = EncodeServo("spin")
	assert.Error(t, err)
}

func TestDecodeZoneConfig(t *testing.T) {
	doc := `{"activation_areas":[[[10,20],[30,40],[50,60]]],"crop_region":{"x":1,"y":2,"w":300,"h":200}}`

	cfg, err := DecodeZoneConfig([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.ActivationAreas, 1)
	assert.Equal(t, core.Zone{{X: 10, Y: 20}, {X: 30, Y: 40}, {X: 50, Y: 60}}, cfg.ActivationAreas[0])
	assert.Equal(t, &core.CropRegion{X: 1, Y: 2, W: 300, H: 200}, cfg.CropRegion)
}

func TestDecodeZoneConfig_OptionalCrop(t *testing.T) {
	for _, doc := range []string{
		`{"activation_areas":[]}`,
		`{"activation_areas":[],"crop_region":null}`,
	} {
		cfg, err := DecodeZoneConfig([]byte(doc))
		require.NoError(t, err, doc)
		assert.Empty(t, cfg.ActivationAreas)
		assert.Nil(t, cfg.CropRegion)
	}
}

func TestDecodeZoneConfig_RoundsToPixelGrid(t *testing.T) {
	doc := `{"activation_areas":[[[10.4,20.6],[30,40.5],[49.5,60]]]}`

	cfg, err := DecodeZoneConfig([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, core.Zone{{X: 10, Y: 21}, {X: 30, Y: 41}, {X: 50, Y: 60}}, cfg.ActivationAreas[0])
}

func TestDecodeZoneConfig_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"not json", `not json`, ""},
		{"array document", `[1,2,3]`, ""},
		{"missing areas", `{"crop_region":null}`, "activation_areas"},
		{"null areas", `{"activation_areas":null}`, "activation_areas"},
		{"areas not array", `{"activation_areas":"zones"}`, "activation_areas"},
		{"zone not array", `{"activation_areas":[{"x":1}]}`, "activation_areas[0]"},
		{"short zone", `{"activation_areas":[[[0,0],[1,1]]]}`, "activation_areas[0]"},
		{"point wrong arity", `{"activation_areas":[[[0,0],[1,1],[2]]]}`, "activation_areas[0][2]"},
		{"point not numeric", `{"activation_areas":[[[0,0],["a",1],[2,2]]]}`, "activation_areas[0][1]"},
		{"point object", `{"activation_areas":[[[0,0],[1,1],{"x":2,"y":2}]]}`, "activation_areas[0][2]"},
		{"crop not object", `{"activation_areas":[],"crop_region":[1,2,3,4]}`, "crop_region"},
		{"crop missing field", `{"activation_areas":[],"crop_region":{"x":1,"y":2,"w":3}}`, "crop_region.h"},
		{"crop non numeric", `{"activation_areas":[],"crop_region":{"x":"1","y":2,"w":3,"h":4}}`, "crop_region.x"},
		{"point overflows", `{"activation_areas":[[[1e20,0],[1,1],[2,2]]]}`, "activation_areas[0][0]"},
		{"point negative overflow", `{"activation_areas":[[[0,0],[1,-3e9],[2,2]]]}`, "activation_areas[0][1]"},
		{"crop overflows", `{"activation_areas":[],"crop_region":{"x":0,"y":0,"w":1e30,"h":5}}`, "crop_region.w"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := DecodeZoneConfig([]byte(tt.doc))
			var ferr *FormatError
			require.True(t, errors.As(err, &ferr), "expected FormatError, got %v", err)
			assert.Equal(t, tt.field, ferr.Field)
			assert.Equal(t, core.ZoneConfig{}, cfg)
		})
	}
}

func TestZoneConfig_EncodeDecodeAgree(t *testing.T) {
	cfg := core.ZoneConfig{
		ActivationAreas: []core.Zone{
			{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}},
			{{X: 5, Y: 5}, {X: 9, Y: 5}, {X: 7, Y: 9}},
		},
		CropRegion: &core.CropRegion{X: 10, Y: 10, W: 620, H: 460},
	}

	data, err := EncodeZoneConfig(cfg)
	require.NoError(t, err)
	back, err := DecodeZoneConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
