package term

import (
	"bytes"
	"sync"

	"github.com/hinshun/vt10x"
)

// Emulator wraps the vt10x terminal emulation engine and keeps the raw
// output stream for replay when a session is reparented onto a new surface.
// Escape-sequence interpretation is entirely the engine's concern; the host
// only tracks enough line accounting to drive the scroll overlay.
type Emulator struct {
	mu sync.Mutex

	vt   vt10x.Terminal
	raw  []byte
	cols uint16
	rows uint16

	// lines is the total number of terminal lines the stream has produced;
	// anything beyond rows has scrolled into scrollback.
	lines      int
	viewOffset int // lines the viewport sits above the bottom
}

// NewEmulator creates an emulator with the given grid size
func NewEmulator(cols, rows uint16) *Emulator {
	return &Emulator{
		vt:   vt10x.New(vt10x.WithSize(int(cols), int(rows))),
		raw:  make([]byte, 0),
		cols: cols,
		rows: rows,
	}
}

// Append feeds process output into the engine and the replay buffer, and
// returns the stream offset just past the appended bytes. Delivery uses
// the offset to tell replayed bytes from new ones.
func (e *Emulator) Append(p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, _ = e.vt.Write(p)
	e.raw = append(e.raw, p...)
	e.lines += bytes.Count(p, []byte{'\n'})
	return len(e.raw)
}

// Contents returns a copy of the raw output stream for replay
func (e *Emulator) Contents() []byte {
	contents, _ := e.Snapshot()
	return contents
}

// Snapshot returns a copy of the raw output stream together with the
// stream offset it runs to
func (e *Emulator) Snapshot() ([]byte, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]byte, len(e.raw))
	copy(out, e.raw)
	return out, len(e.raw)
}

// Resize updates the engine's grid size
func (e *Emulator) Resize(cols, rows uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cols = cols
	e.rows = rows
	e.vt.Resize(int(cols), int(rows))
}

// Size returns the current grid size
func (e *Emulator) Size() (cols, rows uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cols, e.rows
}

// SetViewOffset records how far above the bottom the display layer has
// scrolled the viewport, clamped to the available scrollback.
func (e *Emulator) SetViewOffset(lines int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lines < 0 {
		lines = 0
	}
	if sb := e.scrollbackLocked(); lines > sb {
		lines = sb
	}
	e.viewOffset = lines
}

// Scrollable reports whether any content has scrolled out of the grid
func (e *Emulator) Scrollable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrollbackLocked() > 0
}

// Scroll returns the current scroll position (0 = bottom, 1 = top) and the
// proportion of total content the viewport covers.
func (e *Emulator) Scroll() (position, thumb float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sb := e.scrollbackLocked()
	if sb <= 0 {
		return 0, 1
	}

	// The grid can grow after the user scrolled up, shrinking scrollback
	// underneath a stored offset; clamp so position stays in [0, 1]
	offset := e.viewOffset
	if offset > sb {
		offset = sb
	}

	position = float64(offset) / float64(sb)
	thumb = float64(e.rows) / float64(int(e.rows)+sb)
	return position, thumb
}

func (e *Emulator) scrollbackLocked() int {
	sb := e.lines - int(e.rows)
	if sb < 0 {
		return 0
	}
	return sb
}
