package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"maitred/internal/domain"
)

// --- router-specific test doubles ---

// echoCompleter replies with a fixed string.
type echoCompleter struct {
	reply string
	err   error
	calls int
}

func (c *echoCompleter) Name() string { return "echo" }

func (c *echoCompleter) Complete(_ context.Context, msgs []domain.Message) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if c.reply != "" {
		return c.reply, nil
	}
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

// captureChannel records outbound messages.
type captureChannel struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
}

func (c *captureChannel) Name() string                                        { return "capture" }
func (c *captureChannel) Start(context.Context, domain.MessageHandler) error  { return nil }
func (c *captureChannel) Stop(context.Context) error                          { return nil }

func (c *captureChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *captureChannel) Sent() []domain.OutboundMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]domain.OutboundMessage, len(c.sent))
	copy(cp, c.sent)
	return cp
}

func TestRouterHandleDeliversReply(t *testing.T) {
	bus := &recordingBus{}
	session := NewSession()
	ch := &captureChannel{}
	r := NewRouter(&echoCompleter{}, session, bus, slog.Default())
	r.SetChannel(ch)

	err := r.Handle(context.Background(), domain.InboundMessage{SessionID: "s1", Content: "hello"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	sent := ch.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(sent))
	}
	if sent[0].Content != "echo: hello" {
		t.Errorf("reply = %q", sent[0].Content)
	}
	if sent[0].SessionID != "s1" {
		t.Errorf("session id = %q", sent[0].SessionID)
	}

	msgs := session.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected user+assistant in session, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}

	if !bus.Has(domain.EventMessageReceived) || !bus.Has(domain.EventMessageSent) {
		t.Error("expected message lifecycle events")
	}
}

func TestRouterHandleBackendError(t *testing.T) {
	session := NewSession()
	ch := &captureChannel{}
	r := NewRouter(&echoCompleter{err: errors.New("backend down")}, session, nil, slog.Default())
	r.SetChannel(ch)

	err := r.Handle(context.Background(), domain.InboundMessage{SessionID: "s1", Content: "hello"})
	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	if len(ch.Sent()) != 0 {
		t.Error("no reply should be delivered on backend failure")
	}
	// The user message stays in the session; the next turn retries with it.
	if got := len(session.Messages()); got != 1 {
		t.Errorf("expected 1 message in session, got %d", got)
	}
}

func TestRouterHandleSendsHistory(t *testing.T) {
	session := NewSession()
	session.AddMessage(domain.Message{Role: domain.RoleUser, Content: "earlier"})
	session.AddMessage(domain.Message{Role: domain.RoleAssistant, Content: "reply"})

	comp := &echoCompleter{reply: "ok"}
	ch := &captureChannel{}
	r := NewRouter(comp, session, nil, slog.Default())
	r.SetChannel(ch)

	if err := r.Handle(context.Background(), domain.InboundMessage{SessionID: "s1", Content: "now"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := len(session.Messages()); got != 4 {
		t.Errorf("expected full history of 4, got %d", got)
	}
}
