package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	Auth     AuthConfig     `toml:"auth"`
	LLM      LLMConfig      `toml:"llm"`
	Callback CallbackConfig `toml:"callback"`
	Instance InstanceConfig `toml:"instance"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig selects the evidence store backing. An empty Path keeps
// everything in process memory; a path enables the sqlite backing.
type StoreConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	// APIKey guards the honeypot entry paths (x-api-key header).
	APIKey string `toml:"api_key"`
	// Operator endpoints use JWT issued against AdminPasswordHash (bcrypt).
	JWTSecret         string `toml:"jwt_secret"`
	TokenExpiryMin    int    `toml:"token_expiry_min"`
	AdminHandle       string `toml:"admin_handle"`
	AdminPasswordHash string `toml:"admin_password_hash"`
}

type LLMConfig struct {
	GeminiAPIKey   string `toml:"gemini_api_key"`
	GroqAPIKey     string `toml:"groq_api_key"`
	MistralAPIKey  string `toml:"mistral_api_key"`
	OpenRouterKey  string `toml:"openrouter_api_key"`
	RequestTimeout int    `toml:"request_timeout_sec"`
}

type CallbackConfig struct {
	URL        string `toml:"url"`
	Enabled    bool   `toml:"enabled"`
	MinTurns   int    `toml:"min_turns"`
	DryRun     bool   `toml:"dry_run"`
	TimeoutSec int    `toml:"timeout_sec"`
}

type InstanceConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Path: "", // in-memory
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
			AdminHandle:    "operator",
		},
		LLM: LLMConfig{
			RequestTimeout: 5,
		},
		Callback: CallbackConfig{
			URL:        "https://hackathon.guvi.in/api/updateHoneyPotFinalResult",
			Enabled:    true,
			MinTurns:   2,
			TimeoutSec: 5,
		},
		Instance: InstanceConfig{
			ID:   "local",
			Name: "scamtrap-local",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		applyEnv(cfg)
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv lets secrets come from the environment so no key ever has to
// live in a checked-in config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SCAMTRAP_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.LLM.GeminiAPIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.GroqAPIKey = v
	}
	if v := os.Getenv("CALLBACK_URL"); v != "" {
		cfg.Callback.URL = v
	}
}

// LLMTimeout returns the per-call ceiling for external model requests.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLM.RequestTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.LLM.RequestTimeout) * time.Second
}

// CallbackTimeout returns the ceiling for the outbound callback dispatch.
func (c *Config) CallbackTimeout() time.Duration {
	if c.Callback.TimeoutSec <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Callback.TimeoutSec) * time.Second
}
