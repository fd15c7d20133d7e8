package geo

import (
	"errors"
	"math"

	"github.com/catdetector/companion/pkg/core"
)

// Zone vertices are always stored in the image's native pixel grid. Display
// coordinates only exist while something is on screen and are recomputed from
// the current display size on every render.

var (
	// ErrImageSizeUnknown is returned when no image has been loaded yet
	ErrImageSizeUnknown = errors.New("native image size unknown")
	// ErrDisplaySizeUnknown is returned when the view has no size yet
	ErrDisplaySizeUnknown = errors.New("display size unknown")
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64
	Height float64
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// DisplayPoint is a position on the rendered view.
type DisplayPoint struct {
	X float64
	Y float64
}

// DisplayRect is a rectangle on the rendered view.
type DisplayRect struct {
	X, Y, W, H float64
}

// Transform maps between native image space and display space.
// X and Y scale independently; no aspect ratio is enforced.
type Transform struct {
	native  Size
	display Size
	scaleX  float64
	scaleY  float64
}

// NewTransform builds the mapping for the given sizes. It is the guard that
// keeps callers from transforming before an image is loaded.
func NewTransform(native, display Size) (Transform, error) {
	if !native.Known() {
		return Transform{}, ErrImageSizeUnknown
	}
	if !display.Known() {
		return Transform{}, ErrDisplaySizeUnknown
	}
	return Transform{
		native:  native,
		display: display,
		scaleX:  display.Width / native.Width,
		scaleY:  display.Height / native.Height,
	}, nil
}

// Native returns the native image size.
func (t Transform) Native() Size {
	return t.native
}

// Display returns the display size.
func (t Transform) Display() Size {
	return t.display
}

// ToDisplay scales a native point onto the view.
func (t Transform) ToDisplay(p core.Point) DisplayPoint {
	return DisplayPoint{
		X: float64(p.X) * t.scaleX,
		Y: float64(p.Y) * t.scaleY,
	}
}

// ToNative maps a view position back to the nearest native pixel.
func (t Transform) ToNative(p DisplayPoint) core.Point {
	return core.Point{
		X: int(math.Round(p.X / t.scaleX)),
		Y: int(math.Round(p.Y / t.scaleY)),
	}
}

// RectToDisplay scales a crop region onto the view.
func (t Transform) RectToDisplay(r core.CropRegion) DisplayRect {
	return DisplayRect{
		X: float64(r.X) * t.scaleX,
		Y: float64(r.Y) * t.scaleY,
		W: float64(r.W) * t.scaleX,
		H: float64(r.H) * t.scaleY,
	}
}
