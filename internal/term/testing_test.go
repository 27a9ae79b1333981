package term

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// fakeConsole is an in-memory console so registry and attachment behavior
// can be exercised without spawning real processes.
type fakeConsole struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	mu      sync.Mutex
	input   bytes.Buffer
	resizes [][2]uint16
	killed  bool

	done     chan struct{}
	exitOnce sync.Once
}

func newFakeConsole() *fakeConsole {
	r, w := io.Pipe()
	return &fakeConsole{
		reader: r,
		writer: w,
		done:   make(chan struct{}),
	}
}

func (f *fakeConsole) Read(p []byte) (int, error) {
	return f.reader.Read(p)
}

func (f *fakeConsole) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.Write(p)
}

func (f *fakeConsole) Close() error {
	return f.reader.Close()
}

func (f *fakeConsole) Resize(cols, rows uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]uint16{cols, rows})
	return nil
}

func (f *fakeConsole) Kill() error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	f.exit()
	return nil
}

func (f *fakeConsole) Wait() error {
	<-f.done
	return nil
}

// emit feeds bytes to the session as if the process printed them
func (f *fakeConsole) emit(s string) {
	_, _ = f.writer.Write([]byte(s))
}

// exit simulates the process exiting on its own
func (f *fakeConsole) exit() {
	f.exitOnce.Do(func() {
		_ = f.writer.Close()
		close(f.done)
	})
}

func (f *fakeConsole) wasKilled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

func (f *fakeConsole) inputString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

func (f *fakeConsole) resizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resizes)
}

// fakeLauncher hands out fakeConsoles and counts launches
type fakeLauncher struct {
	mu       sync.Mutex
	consoles []*fakeConsole
	failNext bool
}

func (l *fakeLauncher) launch(spec ConsoleSpec, cols, rows uint16) (console, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failNext {
		l.failNext = false
		return nil, errors.New("spawn failed")
	}

	con := newFakeConsole()
	l.consoles = append(l.consoles, con)
	return con, nil
}

func (l *fakeLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.consoles)
}

func (l *fakeLauncher) console(i int) *fakeConsole {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.consoles[i]
}

func newTestRegistry() (*Registry, *fakeLauncher) {
	launcher := &fakeLauncher{}
	registry := NewRegistry()
	registry.launch = launcher.launch
	return registry, launcher
}

// fakeSurface records every call the coordinator makes against it
type fakeSurface struct {
	id string

	mu             sync.Mutex
	alive          bool
	focused        bool
	cols, rows     uint16
	height         int
	rendered       bytes.Buffer
	appearance     Appearance
	cursor         CursorStyle
	overlay        OverlayGeometry
	overlayVisible bool
	redraws        int
	focusRequests  int
}

func newFakeSurface(id string) *fakeSurface {
	// Deliberately different from the session's initial 80x24 grid so the
	// bind-time relayout is observable as a resize.
	return &fakeSurface{
		id:      id,
		alive:   true,
		focused: true,
		cols:    100,
		rows:    30,
		height:  480,
	}
}

func (s *fakeSurface) ID() string { return s.id }

func (s *fakeSurface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSurface) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

func (s *fakeSurface) Size() (uint16, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

func (s *fakeSurface) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *fakeSurface) Render(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered.Write(p)
}

func (s *fakeSurface) ApplyAppearance(app Appearance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appearance = app
}

func (s *fakeSurface) SetCursor(style CursorStyle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = style
}

func (s *fakeSurface) SetOverlay(geom OverlayGeometry, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay = geom
	s.overlayVisible = visible
}

func (s *fakeSurface) RequestRedraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redraws++
}

func (s *fakeSurface) RequestFocus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusRequests++
}

func (s *fakeSurface) renderedString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered.String()
}

func (s *fakeSurface) setFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

func (s *fakeSurface) destroy() {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
}

func (s *fakeSurface) cursorStyle() CursorStyle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *fakeSurface) overlayState() (OverlayGeometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlay, s.overlayVisible
}

func (s *fakeSurface) focusRequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focusRequests
}
