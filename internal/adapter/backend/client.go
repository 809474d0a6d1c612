// Package backend implements the HTTP client for the external
// chat-completion service the widget talks to.
package backend

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

	"go.opentelemetry.io/otel/trace"

	"maitred/internal/domain"
	"maitred/internal/infra/config"
	"maitred/internal/infra/tracer"
)

const defaultTimeout = 30 * time.Second

// Client implements domain.Completer over an OpenAI-compatible
// chat-completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a backend client from configuration.
func New(cfg config.BackendConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http: &http.Client{
			Timeout: config.ParseDurationOr(cfg.Timeout, defaultTimeout),
		},
		logger: logger,
	}
}

// Name implements domain.Completer.
func (c *Client) Name() string { return "backend" }

// Complete implements domain.Completer.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "backend.complete",
		trace.WithAttributes(tracer.StringAttr("backend.model", c.model)),
	)
	defer span.End()

	body, err := json.Marshal(toWireRequest(c.model, messages))
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return "", domain.NewDomainError("backend.complete", domain.ErrBackend, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", domain.NewDomainError("backend.complete", domain.ErrRateLimit, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("backend returned non-2xx",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 200),
		)
		return "", domain.NewDomainError("backend.complete", domain.ErrBackend,
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		tracer.RecordError(span, err)
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return "", domain.NewDomainError("backend.complete", domain.ErrBackend, "empty choices")
	}

	tracer.SetOK(span)
	return wire.Choices[0].Message.Content, nil
}

// --- wire types ---

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
}

type wireResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

func toWireRequest(model string, messages []domain.Message) wireRequest {
	req := wireRequest{Model: model, Messages: make([]wireMessage, 0, len(messages))}
	for _, m := range messages {
		req.Messages = append(req.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
