package llm

import (
	"time"

	"finscholars/backend/config"
)

// Config selects and configures a provider.
// Provider values: "gemini", "openai", "anthropic", "mock".
type Config struct {
	Provider string

	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Retry     RetryConfig

	// Timeout bounds a single Generate call, retries excluded.
	Timeout time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

func DefaultConfig() Config {
	return Config{
		Provider:  "gemini",
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 60 * time.Second,
	}
}

// ConfigFrom maps the application config onto provider settings.
func ConfigFrom(cfg *config.Config) Config {
	out := DefaultConfig()
	out.Provider = cfg.LLMProvider
	out.Gemini = GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: orDefault(cfg.GeminiModel, out.Gemini.Model)}
	out.OpenAI = OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   orDefault(cfg.OpenAIModel, out.OpenAI.Model),
		BaseURL: cfg.OpenAIBaseURL,
	}
	out.Anthropic = AnthropicConfig{APIKey: cfg.AnthropicAPIKey, Model: orDefault(cfg.AnthropicModel, out.Anthropic.Model)}
	if cfg.LLMMaxAttempts > 0 {
		out.Retry.MaxAttempts = cfg.LLMMaxAttempts
	}
	if cfg.LLMTimeout > 0 {
		out.Timeout = cfg.LLMTimeout
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
