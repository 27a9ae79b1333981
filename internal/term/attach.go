package term

import (
	"fmt"
	"os"
	"sync"

	"github.com/loocor/codmate/internal/logger"
)

// overlayInset is the pixel padding between the scroll indicator and the
// container edges.
const overlayInset = 4

// strictInvariants upgrades attachment-conflict recovery to a panic, for
// catching programming errors during development.
var strictInvariants = os.Getenv("CODMATE_STRICT") != ""

// AttachmentState is the per-surface record of what the surface currently
// displays: the bound session key, the last applied appearance, and the
// overlay state. It exists only while the surface does.
type AttachmentState struct {
	key SessionKey

	mu          sync.Mutex
	appearance  Appearance
	lastVisible bool

	overlay Overlay
}

// Coordinator binds display surfaces to sessions. It handles reparenting
// when a surface instance changes, appearance-only rebinds, focus-driven
// cursor and overlay updates, and the debounced relayout sequence. All
// mutating entry points are expected to be called from the UI layer's one
// execution context; session I/O delivery arrives asynchronously through
// the subscriptions it installs.
type Coordinator struct {
	registry *Registry
	relayout *Relayouter
	cursors  CursorPolicy

	mu     sync.Mutex
	states map[string]*AttachmentState // by surface ID
}

// NewCoordinator creates a coordinator over the given registry
func NewCoordinator(registry *Registry, cursors CursorPolicy) *Coordinator {
	return &Coordinator{
		registry: registry,
		relayout: NewRelayouter(DefaultQuietInterval),
		cursors:  cursors,
		states:   make(map[string]*AttachmentState),
	}
}

// Bind attaches the session for key to surface, creating the session from
// spec if needed. Rebinding the same key to the same surface applies only
// appearance deltas; anything else detaches whatever either side was
// previously bound to, reparents, and re-establishes subscriptions.
func (c *Coordinator) Bind(surface Surface, key SessionKey, spec ConsoleSpec, app Appearance) error {
	if surface == nil || !surface.Alive() {
		// Teardown races are expected; operations on dead surfaces no-op
		return nil
	}

	c.mu.Lock()
	st := c.states[surface.ID()]
	c.mu.Unlock()

	// Fast path: same surface, same key. Apply appearance deltas without
	// touching the binding; only a font change needs a relayout, so
	// theme-only updates cause no visual jitter.
	if st != nil && st.key == key {
		if sess, ok := c.registry.Get(key); ok {
			c.applyAppearance(surface, st, sess, app)
			return nil
		}
		// The state points at a released session; fall through to rebind
	}

	sess, created, err := c.registry.Acquire(key, spec)
	if err != nil {
		return err
	}

	// Same surface, different key: never show two sessions through one
	// surface — fully unbind the previous session first.
	if st != nil && st.key != key {
		if old, ok := c.registry.Get(st.key); ok && boundTo(old, surface) {
			old.detach()
		}
	}

	// The session may currently be displayed elsewhere; unbind it there
	// before reparenting. Detaching never destroys the session.
	if prev := sess.Surface(); prev != nil && prev.ID() != surface.ID() {
		c.unbindSurface(prev, sess)
	}

	c.forceDetachConflicts(surface, key)

	newState := &AttachmentState{key: key, appearance: app}
	c.mu.Lock()
	c.states[surface.ID()] = newState
	c.mu.Unlock()

	surface.ApplyAppearance(app)
	sess.attach(surface)

	// Re-establish subscriptions pointed at the new surface
	sess.SetScrollHandler(func(position, thumb float64) {
		c.updateOverlay(surface, sess, newState, position, thumb)
	})

	c.FocusChanged(surface, surface.Focused())
	c.scheduleRelayout(surface, sess, newState)

	if created {
		// First-time attachment: make typed input immediately usable
		surface.RequestFocus()
	}

	logger.Debugf("Bound session %s to surface %s", key, surface.ID())
	return nil
}

// FocusChanged applies the focus policy: cursor style is recomputed from
// the focus state, and the overlay is suppressed while unfocused. Repeated
// identical calls are idempotent.
func (c *Coordinator) FocusChanged(surface Surface, focused bool) {
	st := c.stateFor(surface)
	if st == nil || !surface.Alive() {
		return
	}

	sess, ok := c.registry.Get(st.key)
	if !ok {
		return
	}

	sess.SetCursorStyle(c.cursors.For(focused))
	st.overlay.SetSuppressed(!focused)
	c.pushOverlay(surface, st)
}

// Resized coalesces a layout-induced geometry change into a deferred
// relayout via the debouncer.
func (c *Coordinator) Resized(surface Surface) {
	st := c.stateFor(surface)
	if st == nil {
		return
	}
	if sess, ok := c.registry.Get(st.key); ok {
		c.scheduleRelayout(surface, sess, st)
	}
}

// Scrolled records a user-driven viewport move reported by the display
// layer. The resulting scroll event flows back through the overlay.
func (c *Coordinator) Scrolled(surface Surface, viewOffset int) {
	st := c.stateFor(surface)
	if st == nil {
		return
	}
	if sess, ok := c.registry.Get(st.key); ok {
		sess.SetViewOffset(viewOffset)
	}
}

// SurfaceClosed tears down the attachment for a destroyed surface. The
// bound session is detached, never released: its process and scrollback
// survive until an explicit Registry.Release.
func (c *Coordinator) SurfaceClosed(surface Surface) {
	if surface == nil {
		return
	}

	c.mu.Lock()
	st := c.states[surface.ID()]
	delete(c.states, surface.ID())
	c.mu.Unlock()

	c.relayout.Cancel(surface.ID())

	if st == nil {
		return
	}
	if sess, ok := c.registry.Get(st.key); ok && boundTo(sess, surface) {
		sess.detach()
	}

	logger.Debugf("Surface %s closed, session %s detached", surface.ID(), st.key)
}

func (c *Coordinator) stateFor(surface Surface) *AttachmentState {
	if surface == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[surface.ID()]
}

// applyAppearance handles the same-key fast path of Bind
func (c *Coordinator) applyAppearance(surface Surface, st *AttachmentState, sess *Session, app Appearance) {
	st.mu.Lock()
	changed := st.appearance != app
	fontChanged := !fontEqual(st.appearance, app)
	st.appearance = app
	st.mu.Unlock()

	if changed {
		surface.ApplyAppearance(app)
	}
	sess.SetCursorStyle(c.cursors.For(surface.Focused()))

	if fontChanged {
		c.scheduleRelayout(surface, sess, st)
	}
}

// unbindSurface clears a surface the session is being reparented away from
func (c *Coordinator) unbindSurface(prev Surface, sess *Session) {
	sess.detach()

	c.mu.Lock()
	if st := c.states[prev.ID()]; st != nil && st.key == sess.Key() {
		delete(c.states, prev.ID())
	}
	c.mu.Unlock()

	c.relayout.Cancel(prev.ID())

	if prev.Alive() {
		prev.SetOverlay(OverlayGeometry{}, false)
	}
}

// forceDetachConflicts recovers from the invariant violation of another
// session still claiming this surface. In strict mode this is fatal; in
// release builds the stale binding is forcibly removed.
func (c *Coordinator) forceDetachConflicts(surface Surface, keep SessionKey) {
	for _, key := range c.registry.Keys() {
		if key == keep {
			continue
		}
		sess, ok := c.registry.Get(key)
		if !ok || !boundTo(sess, surface) {
			continue
		}
		if strictInvariants {
			panic(fmt.Sprintf("attachment conflict: surface %s bound to sessions %s and %s",
				surface.ID(), key, keep))
		}
		logger.Errorf("Attachment conflict: surface %s still bound to session %s, forcibly unbinding", surface.ID(), key)
		sess.detach()
	}
}

func (c *Coordinator) scheduleRelayout(surface Surface, sess *Session, st *AttachmentState) {
	c.relayout.Schedule(surface.ID(), func() {
		if !surface.Alive() {
			return
		}

		cols, rows := surface.Size()
		if err := sess.Resize(cols, rows); err != nil {
			logger.Warnf("Failed to resize session %s to %dx%d: %v", sess.Key(), cols, rows, err)
		}

		surface.RequestRedraw()

		st.overlay.SetScrollable(sess.Scrollable())
		position, thumb := sess.Scroll()
		st.overlay.Update(position, thumb)
		c.pushOverlay(surface, st)
	})
}

// updateOverlay runs on the session's delivery goroutine
func (c *Coordinator) updateOverlay(surface Surface, sess *Session, st *AttachmentState, position, thumb float64) {
	st.overlay.SetScrollable(sess.Scrollable())

	applied := st.overlay.Update(position, thumb)
	visible := st.overlay.Visible()

	st.mu.Lock()
	visibilityChanged := visible != st.lastVisible
	st.mu.Unlock()

	if !applied && !visibilityChanged {
		// Inside the hysteresis band with no visibility flip: no redraw
		return
	}
	c.pushOverlay(surface, st)
}

func (c *Coordinator) pushOverlay(surface Surface, st *AttachmentState) {
	if !surface.Alive() {
		return
	}

	visible := st.overlay.Visible()
	geom := st.overlay.Geometry(surface.Height(), overlayInset)
	surface.SetOverlay(geom, visible)

	st.mu.Lock()
	st.lastVisible = visible
	st.mu.Unlock()
}

// boundTo reports whether sess is currently displayed through surface
func boundTo(sess *Session, surface Surface) bool {
	sf := sess.Surface()
	return sf != nil && sf.ID() == surface.ID()
}
