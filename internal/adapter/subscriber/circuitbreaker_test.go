package subscriber

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"maitred/internal/infra/config"
)

// flakyPersister fails until told otherwise.
type flakyPersister struct {
	mu      sync.Mutex
	failing bool
	calls   int
}

func (p *flakyPersister) SubmitEmail(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failing {
		return errors.New("service unavailable")
	}
	return nil
}

func (p *flakyPersister) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &flakyPersister{}
	cb := NewCircuitBreakerPersister(inner, config.BreakerConfig{}, slog.Default())

	if err := cb.SubmitEmail(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("SubmitEmail: %v", err)
	}
	if inner.Calls() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.Calls())
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	inner := &flakyPersister{failing: true}
	cb := NewCircuitBreakerPersister(inner, config.BreakerConfig{
		MaxFailures: 3,
		Timeout:     "1m",
	}, slog.Default())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := cb.SubmitEmail(ctx, "user@example.com"); err == nil {
			t.Fatal("expected failure")
		}
	}

	// Circuit is open now: the inner persister must not be reached.
	before := inner.Calls()
	err := cb.SubmitEmail(ctx, "user@example.com")
	if err == nil {
		t.Fatal("expected fail-fast error while open")
	}
	if !strings.Contains(err.Error(), "circuit open") {
		t.Errorf("error = %v, want circuit open", err)
	}
	if inner.Calls() != before {
		t.Error("open circuit should not call the inner persister")
	}
}

func TestCircuitBreakerRecovers(t *testing.T) {
	inner := &flakyPersister{failing: true}
	cb := NewCircuitBreakerPersister(inner, config.BreakerConfig{
		MaxFailures: 2,
		Timeout:     "10ms", // short open window so the probe runs quickly
	}, slog.Default())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		cb.SubmitEmail(ctx, "user@example.com")
	}

	inner.mu.Lock()
	inner.failing = false
	inner.mu.Unlock()

	// Wait out the open window, then the half-open probe should succeed.
	recovered := false
	for i := 0; i < 50 && !recovered; i++ {
		time.Sleep(5 * time.Millisecond)
		if err := cb.SubmitEmail(ctx, "user@example.com"); err == nil {
			recovered = true
		}
	}
	if !recovered {
		t.Error("breaker never recovered after the service came back")
	}
}
