package domain

import (
	"context"
	"time"
)

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatStatus describes the transport-level state of the chat turn cycle.
type ChatStatus int

const (
	StatusReady     ChatStatus = iota // idle, assistant turn complete
	StatusSubmitted                   // user message sent, no output yet
	StatusStreaming                   // assistant output in progress
	StatusError                       // last turn failed
)

// String returns a human-readable label for the status.
func (s ChatStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusSubmitted:
		return "submitted"
	case StatusStreaming:
		return "streaming"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether the assistant is currently producing output.
// Both submitted and streaming count: a turn is in flight until the
// status returns to ready or error.
func (s ChatStatus) Busy() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

// Completed reports whether the turn cycle has finished, successfully or not.
func (s ChatStatus) Completed() bool {
	return s == StatusReady || s == StatusError
}

// InboundMessage is a user message entering the widget core.
type InboundMessage struct {
	SessionID string
	Content   string
}

// OutboundMessage is an assistant reply leaving the widget core.
type OutboundMessage struct {
	SessionID string
	Content   string
	IsError   bool
}

// MessageHandler processes an inbound message. The reply is delivered
// asynchronously through the Channel that accepted the message.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// Channel is a user-facing chat surface.
type Channel interface {
	// Name returns the channel identifier (e.g. "tui").
	Name() string
	// Start begins serving the channel, routing user input to handler.
	// Blocks until the channel shuts down or ctx is cancelled.
	Start(ctx context.Context, handler MessageHandler) error
	// Stop gracefully shuts the channel down.
	Stop(ctx context.Context) error
	// Send delivers an outbound message to the user.
	Send(ctx context.Context, msg OutboundMessage) error
}
