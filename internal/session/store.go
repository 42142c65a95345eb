package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/pscheid92/zonewarden/internal/domain"
)

// Store is the mutable registry of in-progress sessions, keyed by
// participant. All reads hand out copies; all mutation happens under the
// store lock, so operations racing on the same participant are linearized
// per key. TakeIf is the atomic test-and-remove the sweep and the reconnect
// path both funnel through, which is what guarantees a session is restored
// exactly once.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[uuid.UUID]domain.Session)}
}

// Put inserts or overwrites the session for its participant.
func (s *Store) Put(sess domain.Session) {
	s.mu.Lock()
	s.sessions[sess.ParticipantID] = sess
	s.mu.Unlock()
}

// Get returns a copy of the participant's session.
func (s *Store) Get(id uuid.UUID) (domain.Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

// Update applies fn to the participant's session under the store lock.
// Returns false if no session exists.
func (s *Store) Update(id uuid.UUID, fn func(*domain.Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return false
	}
	fn(&sess)
	s.sessions[id] = sess
	return true
}

// TakeIf removes and returns the participant's session if pred holds for it.
// Test and removal happen atomically: of two callers racing on the same key,
// at most one receives the session.
func (s *Store) TakeIf(id uuid.UUID, pred func(domain.Session) bool) (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !pred(sess) {
		return domain.Session{}, false
	}
	delete(s.sessions, id)
	return sess, true
}

// Remove deletes the participant's session unconditionally.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Snapshot returns a copy of all sessions, for persistence and for sweep
// iteration. Iterating a snapshot keeps the sweep from holding the store
// lock across any external call.
func (s *Store) Snapshot() map[uuid.UUID]domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]domain.Session, len(s.sessions))
	for id, sess := range s.sessions {
		out[id] = sess
	}
	return out
}

// Replace swaps the full contents, used once at startup after load.
func (s *Store) Replace(sessions map[uuid.UUID]domain.Session) {
	copied := make(map[uuid.UUID]domain.Session, len(sessions))
	for id, sess := range sessions {
		copied[id] = sess
	}
	s.mu.Lock()
	s.sessions = copied
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
