// pkg/core/zone.go
package core

// Point is a vertex in the source image's native pixel grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Zone is a closed polygon; the edge from the last point back to the first is implicit.
// Point order is the polygon boundary.
type Zone []Point

// MinZonePoints is the smallest vertex count a finalized zone may have.
const MinZonePoints = 3

// Clone returns a copy that shares no backing array with z.
func (z Zone) Clone() Zone {
	if z == nil {
		return nil
	}
	out := make(Zone, len(z))
	copy(out, z)
	return out
}

// CropRegion is the rectangle the remote detector analyzes, in native pixels.
// It is advisory only and never clips activation areas.
type CropRegion struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ZoneConfig is the unit of persistence and transmission for zone state.
type ZoneConfig struct {
	ActivationAreas []Zone      `json:"activation_areas"`
	CropRegion      *CropRegion `json:"crop_region"`
}

// Clone returns a deep copy of the config.
func (c ZoneConfig) Clone() ZoneConfig {
	out := ZoneConfig{ActivationAreas: CloneZones(c.ActivationAreas)}
	if c.CropRegion != nil {
		crop := *c.CropRegion
		out.CropRegion = &crop
	}
	return out
}

// CloneZones deep-copies a zone list. The result is never nil.
func CloneZones(zones []Zone) []Zone {
	out := make([]Zone, len(zones))
	for i, z := range zones {
		out[i] = z.Clone()
	}
	return out
}
