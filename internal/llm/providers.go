package llm

import "github.com/hazyhaar/scamtrap/internal/config"

// NewFromConfig builds the fallback chain from the application config.
// Only providers with configured API keys are activated; an empty chain
// means every caller runs its deterministic path.
func NewFromConfig(cfg config.LLMConfig) *Client {
	var providers []Provider

	if cfg.GeminiAPIKey != "" {
		providers = append(providers, NewGeminiProvider(cfg.GeminiAPIKey))
	}

	if cfg.GroqAPIKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:    "groq",
			BaseURL: "https://api.groq.com/openai/v1",
			APIKey:  cfg.GroqAPIKey,
			Model:   "llama-3.3-70b-versatile",
		}))
	}

	if cfg.MistralAPIKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:    "mistral",
			BaseURL: "https://api.mistral.ai/v1",
			APIKey:  cfg.MistralAPIKey,
			Model:   "mistral-small-latest",
		}))
	}

	if cfg.OpenRouterKey != "" {
		providers = append(providers, NewOpenAIProvider(OpenAIConfig{
			Name:    "openrouter",
			BaseURL: "https://openrouter.ai/api/v1",
			APIKey:  cfg.OpenRouterKey,
			Model:   "deepseek/deepseek-chat",
		}))
	}

	return New(providers)
}
