package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"maitred/internal/domain"
	"maitred/internal/infra/config"
)

func newTestClient(url string) *Client {
	return New(config.BackendConfig{
		BaseURL: url,
		APIKey:  "test-key",
		Model:   "concierge-1",
		Timeout: "2s",
	}, slog.Default())
}

func completionResponse(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` +
		string(mustJSON(content)) + `}}]}`
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func TestCompleteSuccess(t *testing.T) {
	var gotReq wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(completionResponse("Bonjour!")))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	reply, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "Bonjour!" {
		t.Errorf("reply = %q", reply)
	}
	if gotReq.Model != "concierge-1" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hello" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "x"}})
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
}

func TestCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "x"}})
	if !errors.Is(err, domain.ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "x"}})
	if !errors.Is(err, domain.ErrBackend) {
		t.Errorf("expected ErrBackend on empty choices, got %v", err)
	}
}

func TestCompleteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "x"}})
	if !errors.Is(err, domain.ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}
