package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlayHysteresis(t *testing.T) {
	var overlay Overlay

	assert.True(t, overlay.Update(0.5, 0.2), "first update always applies")

	// Sub-pixel noise inside the band is dropped
	assert.False(t, overlay.Update(0.5015, 0.205))
	assert.False(t, overlay.Update(0.4985, 0.195))

	// Crossing either threshold applies
	assert.True(t, overlay.Update(0.51, 0.2))
	assert.True(t, overlay.Update(0.51, 0.25))
}

func TestOverlayThumbClamp(t *testing.T) {
	var overlay Overlay

	assert.True(t, overlay.Update(0.0, 0.0001))

	geom := overlay.Geometry(1000, 0)
	// ceil(1000 * 0.01) = 10 from the clamped thumb
	assert.Equal(t, 10, geom.BarHeight)
}

func TestOverlayVisibility(t *testing.T) {
	var overlay Overlay

	assert.False(t, overlay.Visible(), "nothing scrollable yet")

	overlay.SetScrollable(true)
	assert.True(t, overlay.Visible())

	// Focus loss forces the overlay hidden regardless of scrollability
	overlay.SetSuppressed(true)
	assert.False(t, overlay.Visible())

	overlay.SetSuppressed(false)
	assert.True(t, overlay.Visible())

	overlay.SetScrollable(false)
	assert.False(t, overlay.Visible())
}

func TestOverlayGeometry(t *testing.T) {
	t.Run("PositionZeroIsBottom", func(t *testing.T) {
		var overlay Overlay
		overlay.Update(0.0, 0.2)

		geom := overlay.Geometry(100, 4)
		assert.Equal(t, 20, geom.BarHeight)
		// travel = 100 - 2*4 - 20 = 72; position 0 puts the bar at the
		// far end of the travel range
		assert.Equal(t, 4+72, geom.OffsetY)
	})

	t.Run("PositionOneIsTop", func(t *testing.T) {
		var overlay Overlay
		overlay.Update(1.0, 0.2)

		geom := overlay.Geometry(100, 4)
		assert.Equal(t, 4, geom.OffsetY)
	})

	t.Run("MinimumBarHeight", func(t *testing.T) {
		var overlay Overlay
		overlay.Update(0.5, 0.01)

		geom := overlay.Geometry(100, 4)
		assert.Equal(t, minBarHeight, geom.BarHeight)
	})

	t.Run("TinyContainer", func(t *testing.T) {
		var overlay Overlay
		overlay.Update(0.5, 0.5)

		// Bar larger than the container: travel clamps to zero
		geom := overlay.Geometry(10, 4)
		assert.Equal(t, 4, geom.OffsetY)
	})
}
