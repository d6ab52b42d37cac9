package llm

import (
	"sync"
	"time"
)

const sessionIdleEviction = 5 * time.Minute

// SessionManager holds the process-wide named session map. It is mutex-guarded, not per-caller, since the same
// document may be enriched by more than one concurrent window worker.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Open creates or replaces a session with the given cached instructions,
// pushed once per document.
func (m *SessionManager) Open(id string, cachedContext string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
	s := &Session{ID: id, CachedContext: cachedContext, lastUsedAt: m.now()}
	m.sessions[id] = s
	return s
}

// Prepend returns prompt prefixed with the session's cached context,
// recording a hit. A session with an empty cached context records a miss
// and returns prompt unchanged; a missing or expired session returns
// prompt unchanged and records nothing.
func (m *SessionManager) Prepend(id string, prompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()

	s, ok := m.sessions[id]
	if !ok {
		return prompt
	}
	s.lastUsedAt = m.now()
	if s.CachedContext == "" {
		s.Misses++
		return prompt
	}
	s.Hits++
	return s.CachedContext + "\n\n" + prompt
}

func (m *SessionManager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *SessionManager) Stats(id string) (hits, misses int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, present := m.sessions[id]
	if !present {
		return 0, 0, false
	}
	return s.Hits, s.Misses, true
}

// evictLocked drops sessions idle for more than 5 minutes. Caller must
// hold mu.
func (m *SessionManager) evictLocked() {
	cutoff := m.now().Add(-sessionIdleEviction)
	for id, s := range m.sessions {
		if s.lastUsedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
