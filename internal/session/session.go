// Package session is an explicit chat-session store keyed by identifier,
// replacing ambient global state. Sessions expire after a TTL and keep at
// most a bounded number of turns.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"imaging-rag/internal/domain"
)

type entry struct {
	history  []domain.Message
	lastSeen time.Time
}

// Store holds chat histories. Expired sessions are purged lazily on access.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxTurns int
	sessions map[string]*entry
	now      func() time.Time
}

// New creates a session store. ttl <= 0 means sessions never expire;
// maxTurns <= 0 means unbounded history.
func New(ttl time.Duration, maxTurns int) *Store {
	return &Store{
		ttl:      ttl,
		maxTurns: maxTurns,
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Create registers a new empty session and returns its id.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	id := uuid.NewString()
	s.sessions[id] = &entry{lastSeen: s.now()}
	return id
}

// History returns a copy of the session's messages. Unknown or expired
// sessions yield nil.
func (s *Store) History(id string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	e.lastSeen = s.now()
	out := make([]domain.Message, len(e.history))
	copy(out, e.history)
	return out
}

// Append adds messages to a session, creating it if needed, and trims the
// history to the configured turn cap (oldest turns dropped).
func (s *Store) Append(id string, messages ...domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	e.lastSeen = s.now()
	e.history = append(e.history, messages...)
	if s.maxTurns > 0 && len(e.history) > s.maxTurns {
		e.history = e.history[len(e.history)-s.maxTurns:]
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge()
	return len(s.sessions)
}

func (s *Store) purge() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
