package term

import (
	"sync"

	"github.com/loocor/codmate/internal/logger"
)

const (
	defaultCols uint16 = 80
	defaultRows uint16 = 24
)

// Registry is the process-wide table of live sessions, keyed by SessionKey.
// It is the single source of truth for whether a session already exists for
// a key: concurrent Acquire calls for the same new key are resolved
// first-writer-wins, with losers joining the winner's session.
type Registry struct {
	sessions map[SessionKey]*Session
	mu       sync.RWMutex
	launch   launcher
}

// NewRegistry creates an empty registry backed by real pty processes
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[SessionKey]*Session),
		launch:   startPTY,
	}
}

// Acquire returns the live session for key, creating one from spec on a
// miss. A hit ignores the supplied spec entirely. On launch failure the
// key stays unregistered and a *CreationError is returned so the caller
// can retry with a corrected spec.
func (r *Registry) Acquire(key SessionKey, spec ConsoleSpec) (*Session, bool, error) {
	r.mu.RLock()
	session, exists := r.sessions[key]
	r.mu.RUnlock()

	if exists {
		logger.Debugf("Reusing existing session for key %s", key)
		return session, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring the write lock
	if session, exists := r.sessions[key]; exists {
		return session, false, nil
	}

	con, err := r.launch(spec, defaultCols, defaultRows)
	if err != nil {
		logger.Errorf("Failed to launch session %s: %v", key, err)
		return nil, false, &CreationError{Spec: spec, Err: err}
	}

	session = newSession(key, spec, con, defaultCols, defaultRows)
	session.start()
	r.sessions[key] = session

	logger.Infof("Created session %s (command: %s)", key, spec.Command)
	return session, true, nil
}

// Get returns the live session for key without creating one
func (r *Registry) Get(key SessionKey) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, exists := r.sessions[key]
	return session, exists
}

// Exists reports whether a live session is registered for key
func (r *Registry) Exists(key SessionKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sessions[key]
	return exists
}

// Keys returns the keys of all live sessions
func (r *Registry) Keys() []SessionKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]SessionKey, 0, len(r.sessions))
	for key := range r.sessions {
		keys = append(keys, key)
	}
	return keys
}

// Release terminates the session for key and removes it from the table.
// Calling it for an unknown key, or twice for the same key, is a no-op.
func (r *Registry) Release(key SessionKey) {
	r.mu.Lock()
	session, exists := r.sessions[key]
	if exists {
		delete(r.sessions, key)
	}
	r.mu.Unlock()

	if !exists {
		return
	}

	session.detach()
	session.close()
	logger.Infof("Released session %s", key)
}

// Shutdown releases every live session
func (r *Registry) Shutdown() {
	for _, key := range r.Keys() {
		r.Release(key)
	}
}
