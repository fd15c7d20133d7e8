package geo

import (
	"image/color"

	"github.com/catdetector/companion/pkg/core"
)

// ShapeKind says how a shape is drawn.
type ShapeKind int

const (
	ShapeCrop  ShapeKind = iota // dashed rectangle, no fill
	ShapeZone                   // closed polygon, translucent fill
	ShapeDraft                  // open polyline, no fill, no closing edge
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCrop:
		return "crop"
	case ShapeZone:
		return "zone"
	case ShapeDraft:
		return "draft"
	default:
		return "unknown"
	}
}

// Overlay colours.
var (
	CropStroke  = color.RGBA{R: 255, G: 165, B: 0, A: 204}
	ZoneFill    = color.RGBA{R: 0, G: 255, B: 255, A: 77}
	ZoneStroke  = color.RGBA{R: 0, G: 255, B: 255, A: 204}
	DraftStroke = color.RGBA{R: 255, G: 255, B: 0, A: 230}
)

// CropDash is the on/off dash pattern for the crop rectangle.
var CropDash = []float64{8, 4}

// Shape is one drawable element in display coordinates.
type Shape struct {
	Kind      ShapeKind
	Points    []DisplayPoint
	Closed    bool
	Fill      *color.RGBA
	Stroke    color.RGBA
	Dash      []float64
	LineWidth float64
}

// BuildOverlay lays out the crop region, the finished zones and the zone under
// construction, in that drawing order.
func BuildOverlay(t Transform, zones []core.Zone, current []core.Point, crop *core.CropRegion) []Shape {
	shapes := make([]Shape, 0, len(zones)+2)

	if crop != nil {
		r := t.RectToDisplay(*crop)
		shapes = append(shapes, Shape{
			Kind: ShapeCrop,
			Points: []DisplayPoint{
				{X: r.X, Y: r.Y},
				{X: r.X + r.W, Y: r.Y},
				{X: r.X + r.W, Y: r.Y + r.H},
				{X: r.X, Y: r.Y + r.H},
			},
			Closed:    true,
			Stroke:    CropStroke,
			Dash:      CropDash,
			LineWidth: 2,
		})
	}

	for _, z := range zones {
		if len(z) == 0 {
			continue
		}
		fill := ZoneFill
		shapes = append(shapes, Shape{
			Kind:      ShapeZone,
			Points:    toDisplay(t, z),
			Closed:    true,
			Fill:      &fill,
			Stroke:    ZoneStroke,
			LineWidth: 2,
		})
	}

	if len(current) > 0 {
		shapes = append(shapes, Shape{
			Kind:      ShapeDraft,
			Points:    toDisplay(t, current),
			Stroke:    DraftStroke,
			LineWidth: 2,
		})
	}

	return shapes
}

func toDisplay(t Transform, pts []core.Point) []DisplayPoint {
	out := make([]DisplayPoint, len(pts))
	for i, p := range pts {
		out[i] = t.ToDisplay(p)
	}
	return out
}
