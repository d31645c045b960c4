package session

import "sync"

// sessionLocks serializes turns within one session while leaving different
// sessions fully concurrent. Entries are reference-counted and removed
// when idle, so the map does not grow with session churn.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the session's lock is held and returns the release.
func (s *sessionLocks) acquire(sessionID string) func() {
	s.mu.Lock()
	entry, ok := s.locks[sessionID]
	if !ok {
		entry = &lockEntry{}
		s.locks[sessionID] = entry
	}
	entry.refs++
	s.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		s.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}
