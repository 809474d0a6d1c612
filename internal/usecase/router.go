package usecase

import (
	"context"
	"log/slog"

	"maitred/internal/domain"
	"maitred/internal/infra/tracer"
)

// Router dispatches inbound messages through the session and the chat
// backend, delivering the reply via the channel and publishing lifecycle
// events along the way.
type Router struct {
	completer domain.Completer
	session   *Session
	channel   domain.Channel
	bus       domain.EventBus
	logger    *slog.Logger
}

// NewRouter creates a router for one session and channel.
func NewRouter(completer domain.Completer, session *Session, bus domain.EventBus, logger *slog.Logger) *Router {
	return &Router{
		completer: completer,
		session:   session,
		bus:       bus,
		logger:    logger,
	}
}

// SetChannel binds the channel replies are delivered through. Must be set
// before Handle is invoked.
func (r *Router) SetChannel(ch domain.Channel) { r.channel = ch }

// Session returns the conversation session the router appends to.
func (r *Router) Session() *Session { return r.session }

// Handle processes one inbound message end-to-end. The reply (or an error
// reply) is pushed through the channel; the returned error reports the
// backend failure to the caller as well.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) error {
	ctx, span := tracer.StartSpan(ctx, "router.handle")
	defer span.End()

	r.session.AddMessage(domain.Message{Role: domain.RoleUser, Content: msg.Content})
	if r.bus != nil {
		r.bus.Publish(ctx, domain.NewEvent(domain.EventMessageReceived, nil))
	}

	reply, err := r.completer.Complete(ctx, r.session.Messages())
	if err != nil {
		tracer.RecordError(span, err)
		r.logger.Error("backend completion failed", "error", err)
		return domain.WrapOp("router.handle", err)
	}

	r.session.AddMessage(domain.Message{Role: domain.RoleAssistant, Content: reply})

	out := domain.OutboundMessage{SessionID: msg.SessionID, Content: reply}
	if err := r.channel.Send(ctx, out); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("router.send", err)
	}
	if r.bus != nil {
		r.bus.Publish(ctx, domain.NewEvent(domain.EventMessageSent, nil))
	}
	tracer.SetOK(span)
	return nil
}
