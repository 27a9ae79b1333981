package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/loocor/codmate/internal/models"
	"github.com/loocor/codmate/internal/services"
	"github.com/loocor/codmate/internal/term"
)

// SessionsHandler serves the stored-session API the desktop shell uses to
// list, inspect, annotate, and release sessions.
type SessionsHandler struct {
	store    *services.SessionStore
	registry *term.Registry
}

// NewSessionsHandler creates the sessions REST handler
func NewSessionsHandler(store *services.SessionStore, registry *term.Registry) *SessionsHandler {
	return &SessionsHandler{store: store, registry: registry}
}

// RegisterRoutes registers all session-related routes
func (h *SessionsHandler) RegisterRoutes(v1 fiber.Router) {
	v1.Get("/sessions", h.ListSessions)
	v1.Get("/sessions/:id", h.GetSession)
	v1.Post("/sessions/:id/annotations", h.AnnotateSession)
	v1.Delete("/sessions/:id", h.ReleaseSession)
}

// ListSessions returns all stored sessions, most recent first
func (h *SessionsHandler) ListSessions(c *fiber.Ctx) error {
	states := h.store.List()

	summaries := make([]models.SessionSummary, 0, len(states))
	for _, state := range states {
		summaries = append(summaries, h.summarize(state))
	}
	return c.JSON(summaries)
}

// GetSession returns one stored session with its annotations
func (h *SessionsHandler) GetSession(c *fiber.Ctx) error {
	id := c.Params("id")

	state, err := h.store.Load(id)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
	}
	if state == nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "session not found"})
	}
	return c.JSON(h.summarize(state))
}

// AnnotateSession appends a note to a stored session
func (h *SessionsHandler) AnnotateSession(c *fiber.Ctx) error {
	id := c.Params("id")

	var req models.AnnotateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: "annotation text cannot be empty"})
	}

	if err := h.store.Annotate(id, req.Text); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: err.Error()})
	}

	state, err := h.store.Load(id)
	if err != nil || state == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{Error: "failed to reload session"})
	}
	return c.JSON(h.summarize(state))
}

// ReleaseSession terminates any live terminal for the session and, with
// ?purge=true, removes the stored state as well.
func (h *SessionsHandler) ReleaseSession(c *fiber.Ctx) error {
	id := c.Params("id")

	h.registry.Release(term.ResumeKey(id))
	h.registry.Release(term.DraftKey(id))

	if c.Query("purge") == "true" {
		if err := h.store.Delete(id); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{Error: err.Error()})
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionsHandler) summarize(state *services.SessionState) models.SessionSummary {
	live := h.registry.Exists(term.ResumeKey(state.ID)) || h.registry.Exists(term.DraftKey(state.ID))

	return models.SessionSummary{
		ID:               state.ID,
		WorkingDirectory: state.WorkingDirectory,
		Agent:            state.Agent,
		Title:            state.Title,
		Live:             live,
		CreatedAt:        state.CreatedAt,
		LastAccess:       state.LastAccess,
		Annotations:      state.Annotations,
	}
}
