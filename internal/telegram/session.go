package telegram

import (
	"sync"
	"time"

	"nutriplan/internal/plan"
)

// DefaultSessionTTL bounds how long an unsaved menu waits for /guardar.
const DefaultSessionTTL = 24 * time.Hour

// Session is the last generated, not yet saved menu of a chat.
type Session struct {
	ChatID    int64
	StartDate string
	Days      []plan.DayAssignment
	FellBack  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionStore keeps one pending menu per chat in memory.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a SessionStore. A zero ttl uses DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put replaces the chat's pending menu.
func (s *SessionStore) Put(chatID int64, startDate string, days []plan.DayAssignment, fellBack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sessions[chatID] = Session{
		ChatID:    chatID,
		StartDate: startDate,
		Days:      days,
		FellBack:  fellBack,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
}

// GetActive returns the chat's pending menu if it has not expired.
func (s *SessionStore) GetActive(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, chatID)
		return Session{}, false
	}
	return sess, true
}

// Delete drops the chat's pending menu.
func (s *SessionStore) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// CleanupExpired removes all expired sessions.
func (s *SessionStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
