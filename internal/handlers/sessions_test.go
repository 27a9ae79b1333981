package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loocor/codmate/internal/models"
	"github.com/loocor/codmate/internal/services"
	"github.com/loocor/codmate/internal/term"
)

func newTestApp(t *testing.T) (*fiber.App, *services.SessionStore) {
	t.Helper()

	store, err := services.NewSessionStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	registry := term.NewRegistry()
	t.Cleanup(registry.Shutdown)

	app := fiber.New()
	NewSessionsHandler(store, registry).RegisterRoutes(app.Group("/v1"))
	return app, store
}

func seedSession(t *testing.T, store *services.SessionStore, id string) {
	t.Helper()
	require.NoError(t, store.Save(&services.SessionState{
		ID:               id,
		WorkingDirectory: "/work/project",
		Agent:            "claude",
		Title:            "Fix the flaky test",
		CreatedAt:        time.Now(),
		LastAccess:       time.Now(),
	}))
}

func TestListSessions(t *testing.T) {
	app, store := newTestApp(t)
	seedSession(t, store, "abc-123")
	seedSession(t, store, "def-456")

	resp, err := app.Test(httptestRequest("GET", "/v1/sessions", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []models.SessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	assert.Len(t, summaries, 2)
	for _, summary := range summaries {
		assert.False(t, summary.Live, "no terminal is hosted for these sessions")
	}
}

func TestListSessionsSeesRecordedSession(t *testing.T) {
	app, store := newTestApp(t)

	// Sessions recorded at bind time show up in the listing even
	// though no terminal was ever annotated or released
	require.NoError(t, store.Ensure("ws-session-1", "claude", "/work/project"))

	resp, err := app.Test(httptestRequest("GET", "/v1/sessions", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []models.SessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "ws-session-1", summaries[0].ID)
	assert.Equal(t, "claude", summaries[0].Agent)
	assert.Equal(t, "/work/project", summaries[0].WorkingDirectory)
	assert.False(t, summaries[0].Live)
}

func TestGetSession(t *testing.T) {
	app, store := newTestApp(t)
	seedSession(t, store, "abc-123")

	t.Run("Found", func(t *testing.T) {
		resp, err := app.Test(httptestRequest("GET", "/v1/sessions/abc-123", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var summary models.SessionSummary
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
		assert.Equal(t, "Fix the flaky test", summary.Title)
	})

	t.Run("Missing", func(t *testing.T) {
		resp, err := app.Test(httptestRequest("GET", "/v1/sessions/nope", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAnnotateSession(t *testing.T) {
	app, store := newTestApp(t)
	seedSession(t, store, "abc-123")

	body, _ := json.Marshal(models.AnnotateRequest{Text: "needs a second look"})
	resp, err := app.Test(httptestRequest("POST", "/v1/sessions/abc-123/annotations", body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary models.SessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.Len(t, summary.Annotations, 1)
	assert.Equal(t, "needs a second look", summary.Annotations[0].Text)

	t.Run("EmptyText", func(t *testing.T) {
		body, _ := json.Marshal(models.AnnotateRequest{Text: "   "})
		resp, err := app.Test(httptestRequest("POST", "/v1/sessions/abc-123/annotations", body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestReleaseSession(t *testing.T) {
	app, store := newTestApp(t)
	seedSession(t, store, "abc-123")

	// Releasing with no live terminal is a harmless no-op
	resp, err := app.Test(httptestRequest("DELETE", "/v1/sessions/abc-123", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// purge also drops the stored state
	resp2, err := app.Test(httptestRequest("DELETE", "/v1/sessions/abc-123?purge=true", nil))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp2.StatusCode)

	state, err := store.Load("abc-123")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func httptestRequest(method, target string, body []byte) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		panic(fmt.Sprintf("failed to build request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
