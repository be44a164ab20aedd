// Package llm is a small multi-provider chat-completion client with a
// fallback chain. The engine treats it as an optional capability: when no
// provider is configured or every provider fails, callers fall back to
// their deterministic paths.
package llm

import (
	"context"
	"time"
)

// Message is a chat message (system/user/assistant).
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Response is a provider-agnostic completion response.
type Response struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Content  string        `json:"content"`
	Latency  time.Duration `json:"latency_ms"`
}

// Provider is a single LLM API backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client tries each configured provider in order until one answers.
type Client struct {
	providers []Provider
}

func New(providers []Provider) *Client {
	return &Client{providers: providers}
}

// Enabled reports whether at least one provider is configured. A nil
// client counts as disabled so call sites need no nil checks of their own.
func (c *Client) Enabled() bool {
	return c != nil && len(c.providers) > 0
}

// Complete walks the fallback chain. Returns ErrNoProvider when nothing
// is configured, or the last provider error when all fail.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if !c.Enabled() {
		return nil, ErrNoProvider
	}
	var lastErr error
	for _, p := range c.providers {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

// Providers returns the configured provider names in fallback order.
func (c *Client) Providers() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}
