// internal/genai/client.go

// Package genai wraps the external text-generation capability behind a
// Completer interface. The capability is treated as untrusted: it may be
// unconfigured, time out, or return arbitrary prose, and callers are
// expected to degrade rather than fail.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zarzn/dealbot-be-sub000/internal/common/config"
	engerrors "github.com/zarzn/dealbot-be-sub000/internal/common/errors"
	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
)

// Completer is the text-generation capability boundary.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Available() bool
}

// CapabilityHealth tracks recent attempts against the capability so retry
// pressure lives in an explicit value instead of shared class state.
type CapabilityHealth struct {
	mu          sync.Mutex
	LastAttempt time.Time
	RetryCount  int
}

func (h *CapabilityHealth) recordAttempt(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastAttempt = time.Now().UTC()
	if err != nil {
		h.RetryCount++
	} else {
		h.RetryCount = 0
	}
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	logger     logger.Logger
	health     *CapabilityHealth
}

// NewClient builds a client from configuration. A client with an empty base
// URL or API key is still valid; it just reports unavailable.
func NewClient(cfg config.Config, log logger.Logger) *Client {
	timeout := config.GetDuration(cfg.APIs.GenAI.Timeout)
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIs.GenAI.BaseURL, "/"),
		apiKey:     cfg.APIs.GenAI.APIKey,
		model:      cfg.APIs.GenAI.Model,
		timeout:    timeout,
		maxRetries: 2,
		// No transport-level timeout; the per-call context is the only
		// cancellation boundary.
		httpClient: &http.Client{},
		logger:     log.WithFields(map[string]interface{}{"component": "genai"}),
		health:     &CapabilityHealth{},
	}
}

// Available reports whether the capability is configured at all.
func (c *Client) Available() bool {
	return c != nil && c.baseURL != "" && c.apiKey != "" && c.model != ""
}

// Health exposes the attempt tracker for diagnostics.
func (c *Client) Health() *CapabilityHealth {
	return c.health
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one prompt and returns the raw completion text. Timeouts
// map to CAPABILITY_TIMEOUT and an unconfigured client to
// CAPABILITY_UNAVAILABLE so callers can pick the right rung of the
// degradation ladder.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", engerrors.NewCapabilityUnavailableError("text-generation")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.health.recordAttempt(ctx.Err())
				return "", engerrors.NewCapabilityTimeoutError("text-generation", c.timeout)
			}
		}

		text, err := c.doRequest(ctx, body)
		c.health.recordAttempt(err)
		if err == nil {
			return text, nil
		}

		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", engerrors.NewCapabilityTimeoutError("text-generation", c.timeout)
		}
		lastErr = err
	}

	return "", engerrors.NewMalformedResponseError(fmt.Sprintf("completion failed after retries: %v", lastErr))
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
