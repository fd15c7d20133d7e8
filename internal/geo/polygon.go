package geo

import (
	"fmt"

	"github.com/catdetector/companion/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ZoneRing builds the closed boundary of a zone. The closing edge from the
// last vertex back to the first is added here, never stored on the zone.
func ZoneRing(z core.Zone) (geom.LineString, error) {
	if len(z) < core.MinZonePoints {
		return geom.LineString{}, fmt.Errorf("zone must have at least %d points, got %d", core.MinZonePoints, len(z))
	}

	flatCoords := make([]float64, 0, (len(z)+1)*2)
	for _, p := range z {
		flatCoords = append(flatCoords, float64(p.X), float64(p.Y))
	}
	flatCoords = append(flatCoords, float64(z[0].X), float64(z[0].Y))

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("zone boundary: %w", err)
	}
	return ls, nil
}

// ZonePolygon converts a zone into a polygon with a single outer ring. A zone
// whose boundary crosses itself is not a valid polygon and returns an error.
func ZonePolygon(z core.Zone) (geom.Polygon, error) {
	ring, err := ZoneRing(z)
	if err != nil {
		return geom.Polygon{}, err
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("zone polygon: %w", err)
	}
	return poly, nil
}

// ZoneArea returns the enclosed area in square native pixels. It is 0 for
// unfinished, degenerate or self-crossing zones.
func ZoneArea(z core.Zone) float64 {
	poly, err := ZonePolygon(z)
	if err != nil {
		return 0
	}
	return poly.Area()
}

// ZoneIsSimple reports whether the zone boundary does not cross itself.
// Crossing zones are still accepted; the detector decides what they cover.
func ZoneIsSimple(z core.Zone) bool {
	ring, err := ZoneRing(z)
	if err != nil {
		return false
	}
	return ring.IsSimple()
}

// ZonesContaining returns the indices of the zones that contain or touch p.
// Zones that do not form a valid polygon are skipped.
func ZonesContaining(cfg core.ZoneConfig, p core.Point) ([]int, error) {
	pt, err := geom.XY{X: float64(p.X), Y: float64(p.Y)}.AsPoint()
	if err != nil {
		return nil, fmt.Errorf("query point: %w", err)
	}
	g := pt.AsGeometry()

	var hits []int
	for i, z := range cfg.ActivationAreas {
		poly, err := ZonePolygon(z)
		if err != nil {
			continue
		}
		if geom.Intersects(poly.AsGeometry(), g) {
			hits = append(hits, i)
		}
	}
	return hits, nil
}
