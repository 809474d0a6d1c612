// Package chat implements the Bubble Tea chat surface with the
// registration drawer layered over its input.
package chat

import "maitred/internal/domain"

// OutboundMsg wraps a domain.OutboundMessage injected from Channel.Send().
// Gen identifies the request generation so stale responses are discarded.
type OutboundMsg struct {
	Message domain.OutboundMessage
	Gen     uint64
}

// HandlerDoneMsg signals that the message handler goroutine finished.
// Gen identifies the request generation so stale completions are discarded.
type HandlerDoneMsg struct {
	Err error
	Gen uint64
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}

// StreamTickMsg drives simulated streaming (progressive rendering).
type StreamTickMsg struct{}

// DrawerChangedMsg is pushed into the update loop whenever the drawer
// store mutates, including from its own timers, so the view re-renders.
type DrawerChangedMsg struct{}

// EmailSubmittedMsg reports the outcome of routing a submission through
// the registration flow. Consumed means the text was captured as an email
// address; otherwise Value falls through to normal chat submission.
type EmailSubmittedMsg struct {
	Consumed bool
	Value    string
}
