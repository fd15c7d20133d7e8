// Package codec converts between the in-memory zone, threshold and servo
// types and the payloads exchanged with the detector or read from import files.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/catdetector/companion/pkg/core"
	"github.com/catdetector/companion/pkg/wire"
)

// EncodeScriptUpdate serializes the present fields of u. Absent fields are omitted
// so the peer leaves them unchanged.
func EncodeScriptUpdate(u core.ScriptUpdate) ([]byte, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	payload := wire.ScriptPayload{Confidence: u.Confidence, Cooldown: u.Cooldown}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding script update: %w", err)
	}
	return data, nil
}

// EncodeZoneConfig serializes cfg in the zones-set wire shape. Each point is
// flattened to an [x, y] pair and a missing crop region is sent as null.
func EncodeZoneConfig(cfg core.ZoneConfig) ([]byte, error) {
	payload := wire.ZonesPayload{
		ActivationAreas: make([][]wire.Coordinate, 0, len(cfg.ActivationAreas)),
		CropRegion:      cfg.CropRegion,
	}
	for i, zone := range cfg.ActivationAreas {
		if len(zone) < core.MinZonePoints {
			return nil, &core.ValidationError{
				Field:  fmt.Sprintf("activation_areas[%d]", i),
				Reason: "zone must have at least 3 points",
			}
		}
		coords := make([]wire.Coordinate, len(zone))
		for j, p := range zone {
			coords[j] = wire.Coordinate{p.X, p.Y}
		}
		payload.ActivationAreas = append(payload.ActivationAreas, coords)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error encoding zone config: %w", err)
	}
	return data, nil
}

// EncodeServo returns the bare command token.
func EncodeServo(c core.ServoCommand) ([]byte, error) {
	if !c.Valid() {
		return nil, &core.ValidationError{Field: "servo", Reason: fmt.Sprintf("unknown command %q", string(c))}
	}
	return []byte(c), nil
}
