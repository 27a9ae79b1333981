package handlers

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/loocor/codmate/internal/logger"
	"github.com/loocor/codmate/internal/services"
	"github.com/loocor/codmate/internal/term"
)

// TerminalHandler exposes hosted terminal sessions over WebSocket. Each
// connection is one display surface: the front-end can drop and reopen
// connections freely, and the session it was showing stays alive in the
// registry, scrollback intact.
type TerminalHandler struct {
	registry    *term.Registry
	coordinator *term.Coordinator
	launch      *services.LaunchProvider
	store       *services.SessionStore
	appearance  term.Appearance
}

// NewTerminalHandler creates the WebSocket terminal handler
func NewTerminalHandler(registry *term.Registry, coordinator *term.Coordinator, launch *services.LaunchProvider, store *services.SessionStore, appearance term.Appearance) *TerminalHandler {
	return &TerminalHandler{
		registry:    registry,
		coordinator: coordinator,
		launch:      launch,
		store:       store,
		appearance:  appearance,
	}
}

// RegisterRoutes registers the terminal WebSocket route
func (h *TerminalHandler) RegisterRoutes(v1 fiber.Router) {
	v1.Get("/terminal", h.HandleWebSocket)
}

// controlMsg is the JSON envelope for display-layer control messages
type controlMsg struct {
	Type    string `json:"type"`
	Cols    uint16 `json:"cols,omitempty"`
	Rows    uint16 `json:"rows,omitempty"`
	Height  int    `json:"height,omitempty"`
	Focused bool   `json:"focused,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// HandleWebSocket upgrades the request and binds a surface to a session
func (h *TerminalHandler) HandleWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	sessionID := c.Query("session")
	agent := c.Query("agent", "shell")
	dir := c.Query("dir")

	return websocket.New(func(conn *websocket.Conn) {
		h.handleConnection(conn, sessionID, agent, dir)
	})(c)
}

func (h *TerminalHandler) handleConnection(conn *websocket.Conn, sessionID, agent, dir string) {
	var key term.SessionKey
	var spec term.ConsoleSpec

	if sessionID != "" {
		key = term.ResumeKey(sessionID)
		spec = h.launch.AgentSpec(agent, dir, true)
	} else {
		sessionID = uuid.NewString()
		key = term.DraftKey(sessionID)
		spec = h.launch.AgentSpec(agent, dir, false)
	}

	surface := newWSSurface(conn)
	logger.Infof("Terminal surface %s connected for session key %s", surface.ID(), key)

	defer func() {
		surface.markDead()
		h.coordinator.SurfaceClosed(surface)
		logger.Infof("Terminal surface %s closed", surface.ID())
	}()

	if err := h.coordinator.Bind(surface, key, spec, h.appearance); err != nil {
		// Launch failures render inline in place of the terminal
		var creation *term.CreationError
		if errors.As(err, &creation) {
			surface.sendControl("error", map[string]interface{}{
				"message": creation.Error(),
				"command": creation.Spec.Command,
			})
		}
		logger.Errorf("Failed to bind session %s: %v", key, err)
		return
	}

	session, ok := h.registry.Get(key)
	if !ok {
		return
	}

	// Record the session so listing and directory-based resume see it
	if err := h.store.Ensure(sessionID, agent, dir); err != nil {
		logger.Warnf("Failed to record session %s: %v", sessionID, err)
	}

	// Fires immediately when the process is already gone, so a surface
	// reattaching to a dead session still gets its read-only banner
	session.SetExitHandler(func(err error) {
		surface.sendControl("exited", nil)
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if messageType == websocket.TextMessage {
			var msg controlMsg
			if err := json.Unmarshal(data, &msg); err == nil && msg.Type != "" {
				h.handleControl(surface, session, key, msg)
				continue
			}
		}

		// Everything else is terminal input
		if err := session.Write(data); err != nil {
			if errors.Is(err, term.ErrInputRejected) {
				surface.sendControl("input-rejected", nil)
				continue
			}
			logger.Errorf("Session %s write error: %v", key, err)
			return
		}
	}
}

func (h *TerminalHandler) handleControl(surface *wsSurface, session *term.Session, key term.SessionKey, msg controlMsg) {
	switch msg.Type {
	case "resize":
		surface.setGeometry(msg.Cols, msg.Rows, msg.Height)
		h.coordinator.Resized(surface)
	case "focus":
		surface.setFocused(msg.Focused)
		h.coordinator.FocusChanged(surface, msg.Focused)
	case "scroll":
		h.coordinator.Scrolled(surface, msg.Offset)
	case "ready":
		// The client's renderer is up: open the binary stream and replay
		// the full buffer. Output before this point was dropped, so the
		// replay is the client's first and only copy of the scrollback.
		surface.markReady()
		session.Replay()
		surface.sendControl("buffer-complete", nil)
	case "release":
		h.registry.Release(key)
		surface.sendControl("released", nil)
	default:
		logger.Debugf("Unknown control message %q on surface %s", msg.Type, surface.ID())
	}
}

// wsSurface adapts one WebSocket connection to the term.Surface contract.
// Binary terminal output is held back until the client reports its
// renderer ready; the ready replay then delivers the buffer exactly once.
type wsSurface struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
	alive   atomic.Bool
	ready   atomic.Bool

	mu      sync.Mutex
	cols    uint16
	rows    uint16
	height  int
	focused bool
}

func newWSSurface(conn *websocket.Conn) *wsSurface {
	s := &wsSurface{
		id:     uuid.NewString(),
		conn:   conn,
		cols:   80,
		rows:   24,
		height: 480,
	}
	s.alive.Store(true)
	return s
}

func (s *wsSurface) ID() string { return s.id }

func (s *wsSurface) Alive() bool { return s.alive.Load() }

func (s *wsSurface) markDead() { s.alive.Store(false) }

func (s *wsSurface) markReady() { s.ready.Store(true) }

func (s *wsSurface) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

func (s *wsSurface) setFocused(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

func (s *wsSurface) Size() (uint16, uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

func (s *wsSurface) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *wsSurface) setGeometry(cols, rows uint16, height int) {
	s.mu.Lock()
	if cols > 0 {
		s.cols = cols
	}
	if rows > 0 {
		s.rows = rows
	}
	if height > 0 {
		s.height = height
	}
	s.mu.Unlock()
}

func (s *wsSurface) Render(p []byte) {
	if !s.alive.Load() || !s.ready.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		s.markDead()
	}
}

func (s *wsSurface) ApplyAppearance(app term.Appearance) {
	s.sendControl("appearance", map[string]interface{}{
		"font_family": app.FontFamily,
		"font_size":   app.FontSize,
		"theme":       app.Theme,
	})
}

func (s *wsSurface) SetCursor(style term.CursorStyle) {
	s.sendControl("cursor", map[string]interface{}{"style": string(style)})
}

func (s *wsSurface) SetOverlay(geom term.OverlayGeometry, visible bool) {
	s.sendControl("overlay", map[string]interface{}{
		"visible":    visible,
		"bar_height": geom.BarHeight,
		"offset_y":   geom.OffsetY,
	})
}

func (s *wsSurface) RequestRedraw() {
	s.sendControl("redraw", nil)
}

func (s *wsSurface) RequestFocus() {
	s.sendControl("focus-request", nil)
}

func (s *wsSurface) sendControl(msgType string, fields map[string]interface{}) {
	if !s.alive.Load() {
		return
	}

	payload := map[string]interface{}{"type": msgType, "at": time.Now().UnixMilli()}
	for k, v := range fields {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.markDead()
	}
}
