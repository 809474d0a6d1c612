package usecase

import (
	"sync"
	"testing"
	"time"

	"maitred/internal/domain"
)

func TestSessionAddAndCopy(t *testing.T) {
	s := NewSession()
	if s.ID == "" {
		t.Fatal("session should get a generated ID")
	}

	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hello"})
	s.AddMessage(domain.Message{Role: domain.RoleAssistant, Content: "hi"})

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Timestamp.IsZero() {
		t.Error("AddMessage should stamp messages")
	}

	// The returned slice is a copy.
	msgs[0].Content = "mutated"
	if s.Messages()[0].Content != "hello" {
		t.Error("Messages must return a copy")
	}
}

func TestSessionClearKeepsIdentity(t *testing.T) {
	s := NewSession()
	id := s.ID
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hello"})

	s.Clear()
	if len(s.Messages()) != 0 {
		t.Error("clear should drop the history")
	}
	if s.ID != id {
		t.Error("clear must keep the session ID")
	}
}

func TestSessionTruncate(t *testing.T) {
	s := NewSession()
	for i := 0; i < 10; i++ {
		s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "m"})
	}

	s.Truncate(4)
	if got := len(s.Messages()); got != 4 {
		t.Errorf("expected 4 messages after truncate, got %d", got)
	}
	s.Truncate(100)
	if got := len(s.Messages()); got != 4 {
		t.Errorf("truncate above length should be a no-op, got %d", got)
	}
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := NewSession()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "x"})
		}()
		go func() {
			defer wg.Done()
			_ = s.Messages()
		}()
	}
	wg.Wait()
	if got := len(s.Messages()); got != 50 {
		t.Errorf("expected 50 messages, got %d", got)
	}
}

func TestNewULIDOrdering(t *testing.T) {
	a := NewULID(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewULID(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	if !(a < b) {
		t.Errorf("ULIDs should sort by time: %s !< %s", a, b)
	}
}
