package subscriber

import (
	"context"
	"errors"
	"log/slog"

	"maitred/internal/domain"
)

// CompositePersister records the registration locally, then forwards it to
// the remote newsletter service. The local record is authoritative for the
// user-visible outcome: a duplicate means the address was already captured
// (repeat success), and a remote failure is logged but does not fail the
// registration; the forward can be retried out of band from the store.
type CompositePersister struct {
	store  domain.SubscriberStore
	remote domain.EmailPersister
	source string
	logger *slog.Logger
}

// NewCompositePersister builds the persister used by the registration
// flow. remote may be nil (local-only capture).
func NewCompositePersister(store domain.SubscriberStore, remote domain.EmailPersister, source string, logger *slog.Logger) *CompositePersister {
	return &CompositePersister{
		store:  store,
		remote: remote,
		source: source,
		logger: logger,
	}
}

// SubmitEmail implements domain.EmailPersister.
func (p *CompositePersister) SubmitEmail(ctx context.Context, email string) error {
	err := p.store.Add(ctx, &domain.Subscriber{Email: email, Source: p.source})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicate):
		p.logger.Debug("email already captured", "email", email)
	default:
		return err
	}

	if p.remote != nil {
		if err := p.remote.SubmitEmail(ctx, email); err != nil {
			p.logger.Warn("newsletter forward failed, kept local record", "error", err)
		}
	}
	return nil
}
