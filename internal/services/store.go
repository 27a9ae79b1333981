package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loocor/codmate/internal/logger"
	"github.com/loocor/codmate/internal/models"
	"github.com/loocor/codmate/internal/recovery"
)

// SessionState is the persistent record of an agent session: enough to
// list it, resume it, and carry its annotations across restarts.
type SessionState struct {
	ID               string              `json:"id"`
	WorkingDirectory string              `json:"working_directory"`
	Agent            string              `json:"agent"`
	AgentSessionID   string              `json:"agent_session_id,omitempty"`
	Title            string              `json:"title,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	LastAccess       time.Time           `json:"last_access"`
	Environment      map[string]string   `json:"environment,omitempty"`
	Annotations      []models.Annotation `json:"annotations,omitempty"`
}

// SessionStore persists session state as one JSON file per session under
// the state directory, with an in-memory cache kept fresh by an fsnotify
// watcher so edits made by another process become visible.
type SessionStore struct {
	stateDir string

	mu    sync.RWMutex
	cache map[string]*SessionState

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSessionStore creates a store rooted at stateDir and loads any
// existing session files.
func NewSessionStore(stateDir string) (*SessionStore, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session state directory: %w", err)
	}

	store := &SessionStore{
		stateDir: stateDir,
		cache:    make(map[string]*SessionState),
		done:     make(chan struct{}),
	}

	if err := store.loadAll(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("Session store watcher unavailable: %v", err)
	} else if err := watcher.Add(stateDir); err != nil {
		logger.Warnf("Failed to watch session state directory: %v", err)
		_ = watcher.Close()
	} else {
		store.watcher = watcher
		recovery.Go("session-store-watch", store.watch)
	}

	return store, nil
}

// Close stops the watcher
func (s *SessionStore) Close() {
	close(s.done)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

// Save persists the state and updates the cache
func (s *SessionStore) Save(state *SessionState) error {
	if state.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	if err := os.WriteFile(s.filePath(state.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}

	s.mu.Lock()
	s.cache[state.ID] = state
	s.mu.Unlock()

	logger.Debugf("Saved session state for %s", state.ID)
	return nil
}

// Load returns the state for id, or nil when unknown
func (s *SessionStore) Load(id string) (*SessionState, error) {
	if id == "" {
		return nil, fmt.Errorf("session ID cannot be empty")
	}

	s.mu.RLock()
	state, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return state, nil
	}

	return s.loadFile(s.filePath(id))
}

// Delete removes the state for id; unknown ids are a no-op
func (s *SessionStore) Delete(id string) error {
	if id == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}
	return nil
}

// List returns all stored sessions, most recently accessed first
func (s *SessionStore) List() []*SessionState {
	s.mu.RLock()
	states := make([]*SessionState, 0, len(s.cache))
	for _, state := range s.cache {
		states = append(states, state)
	}
	s.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool {
		return states[i].LastAccess.After(states[j].LastAccess)
	})
	return states
}

// Annotate appends a timestamped note to the session and persists it
func (s *SessionStore) Annotate(id, text string) error {
	state, err := s.Load(id)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("no session found for ID %s", id)
	}

	state.Annotations = append(state.Annotations, models.Annotation{
		Text:      text,
		CreatedAt: time.Now(),
	})
	return s.Save(state)
}

// Ensure records a session the host just launched: unknown ids get a
// fresh state record, known ones only a refreshed last-access time. This
// is the path that makes host-launched sessions visible to listing and
// directory-based resume.
func (s *SessionStore) Ensure(id, agent, dir string) error {
	state, err := s.Load(id)
	if err != nil {
		return err
	}

	now := time.Now()
	if state != nil {
		state.LastAccess = now
		return s.Save(state)
	}

	return s.Save(&SessionState{
		ID:               id,
		Agent:            agent,
		WorkingDirectory: dir,
		CreatedAt:        now,
		LastAccess:       now,
	})
}

// FindByDirectory returns the most recently accessed session whose
// working directory matches, for auto-resume.
func (s *SessionStore) FindByDirectory(dir string) *SessionState {
	var newest *SessionState
	for _, state := range s.List() {
		if state.WorkingDirectory == dir {
			if newest == nil || state.LastAccess.After(newest.LastAccess) {
				newest = state
			}
		}
	}
	return newest
}

func (s *SessionStore) filePath(id string) string {
	// Session IDs may carry path separators; flatten them for the filename
	sanitized := strings.ReplaceAll(id, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, ":", "_")
	return filepath.Join(s.stateDir, fmt.Sprintf("%s.json", sanitized))
}

func (s *SessionStore) loadAll() error {
	entries, err := os.ReadDir(s.stateDir)
	if err != nil {
		return fmt.Errorf("failed to read session state directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if _, err := s.loadFile(filepath.Join(s.stateDir, entry.Name())); err != nil {
			logger.Warnf("Skipping unreadable session file %s: %v", entry.Name(), err)
		}
	}
	return nil
}

func (s *SessionStore) loadFile(path string) (*SessionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	if state.ID == "" {
		return nil, fmt.Errorf("session state missing ID")
	}

	s.mu.Lock()
	s.cache[state.ID] = &state
	s.mu.Unlock()

	return &state, nil
}

// watch keeps the cache in sync with files changed by another process
func (s *SessionStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			switch {
			case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
				if _, err := s.loadFile(event.Name); err != nil {
					logger.Debugf("Ignoring session file change %s: %v", event.Name, err)
				}
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				s.evictByPath(event.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Session store watcher error: %v", err)
		}
	}
}

func (s *SessionStore) evictByPath(path string) {
	base := strings.TrimSuffix(filepath.Base(path), ".json")

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.cache {
		sanitized := strings.ReplaceAll(id, "/", "_")
		sanitized = strings.ReplaceAll(sanitized, ":", "_")
		if sanitized == base {
			delete(s.cache, id)
			return
		}
	}
}
