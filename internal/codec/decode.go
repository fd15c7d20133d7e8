package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/catdetector/companion/pkg/core"
)

// FormatError reports a structurally invalid zone document.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return "invalid zone document: " + e.Reason
	}
	return fmt.Sprintf("invalid zone document: %s %s", e.Field, e.Reason)
}

// DecodeZoneConfig parses an import document. The whole document is validated
// before anything is returned; numbers are rounded to the native pixel grid.
func DecodeZoneConfig(data []byte) (core.ZoneConfig, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.ZoneConfig{}, &FormatError{Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	if doc == nil {
		return core.ZoneConfig{}, &FormatError{Reason: "not a JSON object"}
	}

	rawAreas, ok := doc["activation_areas"]
	if !ok {
		return core.ZoneConfig{}, &FormatError{Field: "activation_areas", Reason: "is required"}
	}
	zones, err := decodeAreas(rawAreas)
	if err != nil {
		return core.ZoneConfig{}, err
	}

	var crop *core.CropRegion
	if rawCrop, ok := doc["crop_region"]; ok && !isNull(rawCrop) {
		crop, err = decodeCrop(rawCrop)
		if err != nil {
			return core.ZoneConfig{}, err
		}
	}

	return core.ZoneConfig{ActivationAreas: zones, CropRegion: crop}, nil
}

func decodeAreas(raw json.RawMessage) ([]core.Zone, error) {
	if isNull(raw) {
		return nil, &FormatError{Field: "activation_areas", Reason: "must be an array"}
	}
	var areas []json.RawMessage
	if err := json.Unmarshal(raw, &areas); err != nil {
		return nil, &FormatError{Field: "activation_areas", Reason: "must be an array"}
	}

	zones := make([]core.Zone, 0, len(areas))
	for i, rawZone := range areas {
		field := fmt.Sprintf("activation_areas[%d]", i)

		var points []json.RawMessage
		if isNull(rawZone) || json.Unmarshal(rawZone, &points) != nil {
			return nil, &FormatError{Field: field, Reason: "must be an array of points"}
		}
		if len(points) < core.MinZonePoints {
			return nil, &FormatError{Field: field, Reason: "zone must have at least 3 points"}
		}

		zone := make(core.Zone, len(points))
		for j, rawPoint := range points {
			var pair []float64
			if isNull(rawPoint) || json.Unmarshal(rawPoint, &pair) != nil || len(pair) != 2 {
				return nil, &FormatError{
					Field:  fmt.Sprintf("%s[%d]", field, j),
					Reason: "must be an [x, y] pair of numbers",
				}
			}
			x, okX := roundPixel(pair[0])
			y, okY := roundPixel(pair[1])
			if !okX || !okY {
				return nil, &FormatError{
					Field:  fmt.Sprintf("%s[%d]", field, j),
					Reason: "is out of range",
				}
			}
			zone[j] = core.Point{X: x, Y: y}
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

func decodeCrop(raw json.RawMessage) (*core.CropRegion, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &FormatError{Field: "crop_region", Reason: "must be an object with x, y, w, h"}
	}

	values := make(map[string]int, 4)
	for _, key := range []string{"x", "y", "w", "h"} {
		rawValue, ok := fields[key]
		if !ok {
			return nil, &FormatError{Field: "crop_region." + key, Reason: "is required"}
		}
		var v float64
		if isNull(rawValue) || json.Unmarshal(rawValue, &v) != nil {
			return nil, &FormatError{Field: "crop_region." + key, Reason: "must be a number"}
		}
		px, ok := roundPixel(v)
		if !ok {
			return nil, &FormatError{Field: "crop_region." + key, Reason: "is out of range"}
		}
		values[key] = px
	}

	return &core.CropRegion{X: values["x"], Y: values["y"], W: values["w"], H: values["h"]}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// roundPixel snaps v to the pixel grid. Values beyond int32 are no pixel
// coordinate and would overflow on conversion.
func roundPixel(v float64) (int, bool) {
	r := math.Round(v)
	if math.IsNaN(r) || r > math.MaxInt32 || r < math.MinInt32 {
		return 0, false
	}
	return int(r), true
}
