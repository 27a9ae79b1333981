// Package term hosts process-backed terminal sessions. It keeps session
// process and scrollback state alive independently of the display surface
// currently showing it, so the UI layer can destroy and recreate surfaces
// without disturbing the running program.
package term

import "fmt"

// SessionKey is the stable identity of a logical terminal instance.
// At most one live Session exists per key at any time.
type SessionKey string

// ResumeKey returns the key for a terminal resuming a stored agent session.
func ResumeKey(sessionID string) SessionKey {
	return SessionKey(fmt.Sprintf("resume:%s", sessionID))
}

// DraftKey returns the key for a fresh terminal that has no stored session.
func DraftKey(draftID string) SessionKey {
	return SessionKey(fmt.Sprintf("new:%s", draftID))
}

// ConsoleSpec is the immutable launch descriptor for a session process.
// The launch provider resolves defaults (shell, PATH); the host passes
// Args, Dir and Env through to the process byte-for-byte.
type ConsoleSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// CursorStyle names a cursor rendering mode understood by the display layer
type CursorStyle string

const (
	CursorBlock        CursorStyle = "block"
	CursorBlockBlink   CursorStyle = "block-blink"
	CursorBlockOutline CursorStyle = "block-outline"
	CursorUnderline    CursorStyle = "underline"
	CursorBar          CursorStyle = "bar"
)

// Appearance holds the font and theme parameters supplied by the appearance
// provider. The host applies them without validating their content.
type Appearance struct {
	FontFamily string
	FontSize   int
	Theme      string
}

// fontEqual reports whether two appearances share font metrics. Only font
// changes affect the character grid and therefore require a relayout.
func fontEqual(a, b Appearance) bool {
	return a.FontFamily == b.FontFamily && a.FontSize == b.FontSize
}

// OverlayGeometry describes the scroll indicator in container pixels
type OverlayGeometry struct {
	BarHeight int
	OffsetY   int
}

// Surface is a transient display handle a Session can be bound to. Surfaces
// are created and destroyed arbitrarily often by the UI layer; all methods
// must tolerate being called shortly before destruction.
type Surface interface {
	// ID is stable for the lifetime of this surface instance
	ID() string
	// Alive reports whether the surface can still be drawn to
	Alive() bool
	// Focused reports whether the surface holds input focus
	Focused() bool
	// Size returns the character grid geometry
	Size() (cols, rows uint16)
	// Height returns the container height in pixels, used for overlay layout
	Height() int
	// Render forwards raw terminal bytes to the surface's emulation front-end
	Render(p []byte)
	// ApplyAppearance pushes font and theme parameters to the surface
	ApplyAppearance(app Appearance)
	// SetCursor applies the active cursor style
	SetCursor(style CursorStyle)
	// SetOverlay positions the scroll indicator, or hides it
	SetOverlay(geom OverlayGeometry, visible bool)
	// RequestRedraw asks the surface to repaint from the emulation state
	RequestRedraw()
	// RequestFocus asks the owning window to move input focus here
	RequestFocus()
}
