package subscriber

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"maitred/internal/domain"
	"maitred/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerPersister wraps an EmailPersister with circuit breaker
// protection. When the newsletter service fails repeatedly, the circuit
// opens and subsequent submissions fail fast; the registration flow treats
// that like any other persistence failure and falls through to normal chat
// submission.
type CircuitBreakerPersister struct {
	inner   domain.EmailPersister
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

// NewCircuitBreakerPersister wraps inner with a circuit breaker.
// Zero-valued cfg fields get sensible defaults.
func NewCircuitBreakerPersister(inner domain.EmailPersister, cfg config.BreakerConfig, logger *slog.Logger) *CircuitBreakerPersister {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := config.ParseDurationOr(cfg.Timeout, defaultCBTimeout)
	interval := config.ParseDurationOr(cfg.Interval, defaultCBInterval)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "newsletter",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &CircuitBreakerPersister{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// SubmitEmail implements domain.EmailPersister. Calls are routed through
// the circuit breaker.
func (p *CircuitBreakerPersister) SubmitEmail(ctx context.Context, email string) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.inner.SubmitEmail(ctx, email)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("newsletter circuit open: %w", err)
	}
	return err
}
