package domain

import (
	"context"
	"time"
)

// Subscriber is a captured newsletter registration.
type Subscriber struct {
	ID        string    `json:"id"` // ULID
	Email     string    `json:"email"`
	Source    string    `json:"source"` // channel that captured it (e.g. "tui")
	CreatedAt time.Time `json:"created_at"`
}

// SubscriberStore persists captured registrations locally.
type SubscriberStore interface {
	// Add stores a subscriber. Returns ErrDuplicate if the email is
	// already recorded.
	Add(ctx context.Context, sub *Subscriber) error
	// GetByEmail looks up a subscriber. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Subscriber, error)
	// List returns all subscribers, newest first.
	List(ctx context.Context) ([]*Subscriber, error)
	Close() error
}

// EmailPersister submits an email address to the newsletter service.
// Implementations must be safe for a second submission of the same
// address: a repeat success is harmless, a repeat failure is logged
// by the caller and ignored.
type EmailPersister interface {
	SubmitEmail(ctx context.Context, email string) error
}

// EmailPersisterFunc adapts a function to the EmailPersister interface.
type EmailPersisterFunc func(ctx context.Context, email string) error

func (f EmailPersisterFunc) SubmitEmail(ctx context.Context, email string) error {
	return f(ctx, email)
}
