package term

import (
	"math"
	"sync"
)

const (
	// minThumb is the smallest thumb proportion ever reported
	minThumb = 0.01
	// positionEpsilon / thumbEpsilon form the hysteresis band: updates
	// inside the band are dropped to keep sub-pixel scroll noise from
	// flickering the indicator.
	positionEpsilon = 0.002
	thumbEpsilon    = 0.01
	// minBarHeight keeps the indicator grabbable-looking on huge buffers
	minBarHeight = 8
)

// Overlay tracks the non-interactive scroll indicator for one attachment.
// Position runs 0 (scrolled to bottom) to 1 (scrolled to top); geometry
// preserves that inversion when mapping to pixels.
type Overlay struct {
	mu         sync.Mutex
	position   float64
	thumb      float64
	applied    bool
	suppressed bool
	scrollable bool
}

// Update applies a scroll change, clamping the thumb proportion and
// dropping changes inside the hysteresis band. It reports whether the
// overlay state actually changed.
func (o *Overlay) Update(position, thumb float64) bool {
	if thumb < minThumb {
		thumb = minThumb
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.applied &&
		math.Abs(position-o.position) < positionEpsilon &&
		math.Abs(thumb-o.thumb) < thumbEpsilon {
		return false
	}

	o.position = position
	o.thumb = thumb
	o.applied = true
	return true
}

// SetSuppressed forces the overlay hidden, regardless of scrollability.
// The focus policy toggles this when the surface loses input focus.
func (o *Overlay) SetSuppressed(suppressed bool) {
	o.mu.Lock()
	o.suppressed = suppressed
	o.mu.Unlock()
}

// SetScrollable records whether the session currently has scrollback
func (o *Overlay) SetScrollable(scrollable bool) {
	o.mu.Lock()
	o.scrollable = scrollable
	o.mu.Unlock()
}

// Visible reports whether the indicator should be drawn: only when the
// surface is focused (not suppressed) and the content is scrollable.
func (o *Overlay) Visible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.suppressed && o.scrollable
}

// Geometry maps the overlay state onto a container of the given pixel
// height. Position 0 places the bar at the bottom, position 1 at the top.
func (o *Overlay) Geometry(containerHeight, inset int) OverlayGeometry {
	o.mu.Lock()
	position := o.position
	thumb := o.thumb
	o.mu.Unlock()

	if thumb < minThumb {
		thumb = minThumb
	}

	barHeight := int(math.Ceil(float64(containerHeight) * thumb))
	if barHeight < minBarHeight {
		barHeight = minBarHeight
	}

	travel := containerHeight - 2*inset - barHeight
	if travel < 0 {
		travel = 0
	}

	return OverlayGeometry{
		BarHeight: barHeight,
		OffsetY:   inset + int(math.Round(float64(travel)*(1-position))),
	}
}
