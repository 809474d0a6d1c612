package usecase

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"maitred/internal/domain"
)

// Session holds the conversation history for one chat session view.
// It lives exactly as long as the view: created on mount, discarded on
// unmount, never persisted.
type Session struct {
	mu        sync.RWMutex
	ID        string
	Msgs      []domain.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an empty session with a generated ULID.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        NewULID(now),
		Msgs:      make([]domain.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewULID generates a ULID for the given timestamp.
func NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// AddMessage appends a message and updates the timestamp (thread-safe).
func (s *Session) AddMessage(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Msgs = append(s.Msgs, msg)
	s.UpdatedAt = time.Now()
}

// Messages returns a copy of the message history (thread-safe).
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.Message, len(s.Msgs))
	copy(cp, s.Msgs)
	return cp
}

// Clear drops the history, keeping the session identity.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Msgs = s.Msgs[:0]
	s.UpdatedAt = time.Now()
}

// Truncate keeps only the last maxMessages messages.
func (s *Session) Truncate(maxMessages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Msgs) <= maxMessages {
		return
	}
	s.Msgs = s.Msgs[len(s.Msgs)-maxMessages:]
}
