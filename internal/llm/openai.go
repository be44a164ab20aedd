package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIProvider implements Provider for any OpenAI-compatible chat API
// (Groq, Mistral, OpenRouter, ...).
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	Name    string
	BaseURL string // e.g. "https://api.groq.com/openai/v1"
	APIKey  string
	Model   string // default model ID
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		return nil, &ProviderError{Provider: p.name, Err: fmt.Errorf("no model specified")}
	}

	body := oaiRequest{Model: model, Messages: make([]oaiMessage, len(req.Messages))}
	for i, m := range req.Messages {
		body.Messages[i] = oaiMessage(m)
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	start := time.Now()
	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: err}
	}
	if httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: ErrRateLimited}
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: p.name, Model: model,
			Err: fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, truncate(string(respBody), 200))}
	}

	var out oaiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return nil, &ProviderError{Provider: p.name, Model: model, Err: fmt.Errorf("no choices in response")}
	}

	return &Response{
		Provider: p.name,
		Model:    out.Model,
		Content:  out.Choices[0].Message.Content,
		Latency:  time.Since(start),
	}, nil
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature *float64     `json:"temperature,omitempty"`
	MaxTokens   *int         `json:"max_tokens,omitempty"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}
