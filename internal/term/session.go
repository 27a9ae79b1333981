package term

import (
	"sync"
	"sync/atomic"

	"github.com/loocor/codmate/internal/logger"
	"github.com/loocor/codmate/internal/recovery"
)

// Session is a live, process-backed terminal instance. It owns the spawned
// process, its emulation buffer, and the subscriber hooks the attachment
// layer points at whichever surface currently displays it. A Session is
// never destroyed by surface teardown; only Registry.Release ends it.
type Session struct {
	key  SessionKey
	spec ConsoleSpec
	con  console
	emu  *Emulator

	mu       sync.Mutex
	surface  Surface
	cursor   CursorStyle
	cols     uint16
	rows     uint16
	replayed int // stream offset already delivered to the surface via replay
	onScroll func(position, thumb float64)
	onExit   func(err error)
	exited   bool
	exitErr  error

	released atomic.Bool
	waitOnce sync.Once
	waitErr  error
}

func newSession(key SessionKey, spec ConsoleSpec, con console, cols, rows uint16) *Session {
	return &Session{
		key:  key,
		spec: spec,
		con:  con,
		emu:  NewEmulator(cols, rows),
		cols: cols,
		rows: rows,
	}
}

// Key returns the session's stable identity
func (s *Session) Key() SessionKey {
	return s.key
}

// Spec returns the launch descriptor the session was created with
func (s *Session) Spec() ConsoleSpec {
	return s.spec
}

// start launches the read pump that moves process output into the
// emulation buffer and on to the bound surface. Delivery runs on its own
// goroutine and never blocks attachment-layer operations; anything read
// after release is discarded.
func (s *Session) start() {
	recovery.Go("session-read:"+string(s.key), s.readPump)
}

func (s *Session) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.con.Read(buf)
		if s.released.Load() {
			return
		}
		if n > 0 {
			end := s.emu.Append(buf[:n])
			s.deliver(buf[:n], end)
		}
		if err != nil {
			s.markExited(err)
			return
		}
	}
}

// deliver forwards an appended chunk ending at stream offset end to the
// bound surface. Reparenting replays the buffer concurrently with
// delivery; the replay watermark tells which prefix of the chunk the
// surface has already seen that way, so nothing is rendered twice or out
// of order.
func (s *Session) deliver(p []byte, end int) {
	start := end - len(p)

	s.mu.Lock()
	surface := s.surface
	notify := s.onScroll
	skip := s.replayed - start
	s.mu.Unlock()

	if skip < 0 {
		skip = 0
	}
	if surface != nil && skip < len(p) {
		surface.Render(p[skip:])
	}
	if notify != nil {
		pos, thumb := s.emu.Scroll()
		notify(pos, thumb)
	}
}

func (s *Session) markExited(cause error) {
	s.wait()

	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.exited = true
	s.exitErr = s.waitErr
	notify := s.onExit
	s.mu.Unlock()

	logger.Debugf("Session %s process exited: %v", s.key, cause)
	if notify != nil {
		notify(s.waitErr)
	}
}

func (s *Session) wait() {
	s.waitOnce.Do(func() {
		s.waitErr = s.con.Wait()
	})
}

// Write sends input to the process. Once the process has exited the
// session is read-only and ErrInputRejected is returned.
func (s *Session) Write(p []byte) error {
	s.mu.Lock()
	exited := s.exited
	s.mu.Unlock()

	if exited || s.released.Load() {
		return ErrInputRejected
	}

	_, err := s.con.Write(p)
	return err
}

// Resize propagates a grid size change to the emulator and the process.
// Identical sizes are skipped entirely so a running full-screen program
// never sees a redundant size-change signal.
func (s *Session) Resize(cols, rows uint16) error {
	if cols == 0 || rows == 0 {
		return nil
	}

	s.mu.Lock()
	if s.cols == cols && s.rows == rows {
		s.mu.Unlock()
		return nil
	}
	s.cols = cols
	s.rows = rows
	exited := s.exited
	s.mu.Unlock()

	s.emu.Resize(cols, rows)
	if exited || s.released.Load() {
		return nil
	}
	return s.con.Resize(cols, rows)
}

// Size returns the last applied grid size
func (s *Session) Size() (cols, rows uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Exited reports whether the backing process has exited
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// Contents returns the buffered output stream for replay
func (s *Session) Contents() []byte {
	return s.emu.Contents()
}

// Scrollable reports whether content has scrolled out of the grid
func (s *Session) Scrollable() bool {
	return s.emu.Scrollable()
}

// Scroll returns the current scroll position and thumb proportion
func (s *Session) Scroll() (position, thumb float64) {
	return s.emu.Scroll()
}

// SetViewOffset records the display layer's viewport position and re-emits
// a scroll event so the overlay tracks user-driven scrolling.
func (s *Session) SetViewOffset(lines int) {
	s.emu.SetViewOffset(lines)

	s.mu.Lock()
	notify := s.onScroll
	s.mu.Unlock()

	if notify != nil {
		pos, thumb := s.emu.Scroll()
		notify(pos, thumb)
	}
}

// SetScrollHandler registers the scroll subscriber; nil unregisters
func (s *Session) SetScrollHandler(fn func(position, thumb float64)) {
	s.mu.Lock()
	s.onScroll = fn
	s.mu.Unlock()
}

// SetExitHandler registers the process-exit subscriber; nil unregisters.
// A handler registered after the process already exited fires immediately,
// so late subscribers cannot miss the event.
func (s *Session) SetExitHandler(fn func(err error)) {
	s.mu.Lock()
	s.onExit = fn
	exited := s.exited
	exitErr := s.exitErr
	s.mu.Unlock()

	if exited && fn != nil {
		fn(exitErr)
	}
}

// SetCursorStyle recomputes the session's cursor rendering state. The
// style is stored, not diffed, so repeated identical calls are idempotent.
func (s *Session) SetCursorStyle(style CursorStyle) {
	s.mu.Lock()
	s.cursor = style
	surface := s.surface
	s.mu.Unlock()

	if surface != nil {
		surface.SetCursor(style)
	}
}

// Surface returns the surface the session is currently bound to, or nil
func (s *Session) Surface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// attach binds the session to a surface and replays the emulation buffer
// into it. The caller is responsible for detaching any previous surface.
// The replay render happens under the session lock so delivery of a
// concurrent chunk cannot land on the new surface ahead of its replay.
func (s *Session) attach(surface Surface) {
	s.mu.Lock()
	s.surface = surface
	cursor := s.cursor
	contents, end := s.emu.Snapshot()
	s.replayed = end
	if len(contents) > 0 {
		surface.Render(contents)
	}
	s.mu.Unlock()

	if cursor != "" {
		surface.SetCursor(cursor)
	}
}

// Replay re-delivers the full buffered stream to the bound surface and
// advances the watermark, so output arriving mid-replay is not duplicated.
// Used when a display surface rebuilds its renderer and asks for the
// buffer again.
func (s *Session) Replay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface == nil {
		return
	}
	contents, end := s.emu.Snapshot()
	s.replayed = end
	if len(contents) > 0 {
		s.surface.Render(contents)
	}
}

// detach unbinds the session from its surface. Scrollback and process
// state are untouched; the session is simply no longer displayed.
func (s *Session) detach() {
	s.mu.Lock()
	s.surface = nil
	s.onScroll = nil
	s.mu.Unlock()
}

// close terminates the process and releases the console. Safe to call
// repeatedly and while I/O delivery is in flight.
func (s *Session) close() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}

	_ = s.con.Kill()
	_ = s.con.Close()
	s.wait()
}
