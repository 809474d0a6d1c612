// Package subscriber implements email persistence for the registration
// flow: the remote newsletter service, a circuit breaker wrapper, a local
// SQLite record, and the composite that ties them together.
package subscriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"maitred/internal/domain"
	"maitred/internal/infra/config"
	"maitred/internal/infra/tracer"
)

const defaultNewsletterTimeout = 10 * time.Second

// NewsletterClient implements domain.EmailPersister against the newsletter
// service's HTTP API. A client-side token bucket keeps repeat submissions
// (possible while an earlier call is still pending) inside the service's
// request budget.
type NewsletterClient struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewNewsletterClient creates a client from configuration.
func NewNewsletterClient(cfg config.NewsletterConfig, logger *slog.Logger) *NewsletterClient {
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 30
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &NewsletterClient{
		url:   strings.TrimRight(cfg.URL, "/"),
		token: cfg.Token,
		http: &http.Client{
			Timeout: config.ParseDurationOr(cfg.Timeout, defaultNewsletterTimeout),
		},
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), burst),
		logger:  logger,
	}
}

// SubmitEmail implements domain.EmailPersister.
func (c *NewsletterClient) SubmitEmail(ctx context.Context, email string) error {
	ctx, span := tracer.StartSpan(ctx, "newsletter.submit")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("newsletter.submit", err)
	}

	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("marshal subscribe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.url+"/subscribers", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build subscribe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.NewDomainError("newsletter.submit", domain.ErrNewsletter, err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // drain for keep-alive

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Already subscribed: a repeat submission is a success.
		tracer.SetOK(span)
		return nil
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		tracer.SetOK(span)
		return nil
	default:
		err := domain.NewDomainError("newsletter.submit", domain.ErrNewsletter,
			fmt.Sprintf("status %d", resp.StatusCode))
		tracer.RecordError(span, err)
		return err
	}
}
