package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWSSurfaceHoldsOutputUntilReady(t *testing.T) {
	// No connection behind the surface: any write attempt before the
	// client reports ready would panic instead of being dropped
	surface := newWSSurface(nil)

	surface.Render([]byte("early output"))

	assert.True(t, surface.Alive())
	assert.False(t, surface.ready.Load())
}

func TestWSSurfaceGeometry(t *testing.T) {
	surface := newWSSurface(nil)

	cols, rows := surface.Size()
	assert.Equal(t, uint16(80), cols)
	assert.Equal(t, uint16(24), rows)

	surface.setGeometry(120, 40, 960)
	cols, rows = surface.Size()
	assert.Equal(t, uint16(120), cols)
	assert.Equal(t, uint16(40), rows)
	assert.Equal(t, 960, surface.Height())

	// Zero values leave the previous geometry in place
	surface.setGeometry(0, 0, 0)
	cols, rows = surface.Size()
	assert.Equal(t, uint16(120), cols)
	assert.Equal(t, uint16(40), rows)
}
