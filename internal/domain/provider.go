package domain

import "context"

// Completer produces an assistant reply for a conversation. Implemented by
// the chat backend adapter; the widget core never owns the transport.
type Completer interface {
	Name() string
	Complete(ctx context.Context, messages []Message) (string, error)
}
