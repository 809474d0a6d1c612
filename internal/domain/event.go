package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventMessageReceived EventType = "message.received"
	EventMessageSent     EventType = "message.sent"

	// Drawer lifecycle events.
	EventDrawerOpened EventType = "drawer.opened"
	EventDrawerClosed EventType = "drawer.closed"

	// Registration flow events.
	EventRegistrationPrompted  EventType = "registration.prompted"
	EventRegistrationDeclined  EventType = "registration.declined"
	EventRegistrationCaptured  EventType = "registration.captured"
	EventRegistrationCompleted EventType = "registration.completed"
	EventRegistrationFailed    EventType = "registration.failed"
)

// Event is a single published event.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler receives published events.
type EventHandler func(ctx context.Context, event Event)

// EventBus is an in-process publish/subscribe bus.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for one event type and returns an
	// unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
}

// NewEvent builds an event with the payload marshalled to JSON.
// A payload that cannot be marshalled is dropped silently; events are
// observability, not control flow.
func NewEvent(t EventType, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now()}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}
