package geo

import (
	"errors"
	"testing"

	"github.com/catdetector/companion/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransform_UnknownSizes(t *testing.T) {
	_, err := NewTransform(Size{}, Size{Width: 640, Height: 480})
	if !errors.Is(err, ErrImageSizeUnknown) {
		t.Errorf("expected ErrImageSizeUnknown, got %v", err)
	}

	_, err = NewTransform(Size{Width: 1280, Height: 720}, Size{Width: 0, Height: 480})
	if !errors.Is(err, ErrDisplaySizeUnknown) {
		t.Errorf("expected ErrDisplaySizeUnknown, got %v", err)
	}
}

func TestTransform_ToDisplay(t *testing.T) {
	tr, err := NewTransform(Size{Width: 1280, Height: 720}, Size{Width: 640, Height: 360})
	require.NoError(t, err)

	got := tr.ToDisplay(core.Point{X: 100, Y: 50})
	assert.Equal(t, DisplayPoint{X: 50, Y: 25}, got)
}

func TestTransform_IndependentAxes(t *testing.T) {
	// stretched container: X halves, Y doubles
	tr, err := NewTransform(Size{Width: 200, Height: 100}, Size{Width: 100, Height: 200})
	require.NoError(t, err)

	got := tr.ToDisplay(core.Point{X: 40, Y: 40})
	assert.Equal(t, DisplayPoint{X: 20, Y: 80}, got)
	assert.Equal(t, core.Point{X: 40, Y: 40}, tr.ToNative(got))
}

func TestTransform_ToNativeRounds(t *testing.T) {
	tr, err := NewTransform(Size{Width: 1920, Height: 1080}, Size{Width: 800, Height: 450})
	require.NoError(t, err)

	tests := []struct {
		name  string
		click DisplayPoint
		want  core.Point
	}{
		{"origin", DisplayPoint{X: 0, Y: 0}, core.Point{X: 0, Y: 0}},
		{"round down", DisplayPoint{X: 10.1, Y: 10.1}, core.Point{X: 24, Y: 24}},
		{"round up", DisplayPoint{X: 10.3, Y: 10.3}, core.Point{X: 25, Y: 25}},
		{"far corner", DisplayPoint{X: 800, Y: 450}, core.Point{X: 1920, Y: 1080}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.ToNative(tt.click))
		})
	}
}

func TestTransform_RoundTripWithinOnePixel(t *testing.T) {
	sizes := []struct {
		native  Size
		display Size
	}{
		{Size{Width: 1280, Height: 720}, Size{Width: 640, Height: 360}},
		{Size{Width: 1920, Height: 1080}, Size{Width: 1013, Height: 571}},
		{Size{Width: 640, Height: 480}, Size{Width: 1600, Height: 1200}},
		{Size{Width: 333, Height: 777}, Size{Width: 91, Height: 1049}},
	}
	for _, s := range sizes {
		tr, err := NewTransform(s.native, s.display)
		require.NoError(t, err)

		for x := 0; x <= int(s.native.Width); x += 37 {
			for y := 0; y <= int(s.native.Height); y += 41 {
				p := core.Point{X: x, Y: y}
				back := tr.ToNative(tr.ToDisplay(p))
				assert.InDelta(t, p.X, back.X, 1, "x for %v at %v", p, s)
				assert.InDelta(t, p.Y, back.Y, 1, "y for %v at %v", p, s)
			}
		}
	}
}

func TestTransform_RectToDisplay(t *testing.T) {
	tr, err := NewTransform(Size{Width: 1000, Height: 500}, Size{Width: 500, Height: 500})
	require.NoError(t, err)

	r := tr.RectToDisplay(core.CropRegion{X: 100, Y: 50, W: 200, H: 100})
	assert.Equal(t, DisplayRect{X: 50, Y: 50, W: 100, H: 100}, r)
}
