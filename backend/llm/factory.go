package llm

import (
	"context"
	"fmt"

	"finscholars/backend/utils"
)

// NewProvider builds the configured provider wrapped as
// caller -> retry -> timeout -> logging -> base.
func NewProvider(ctx context.Context, cfg Config, logger *utils.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	logged := WithLogging(base, logger)
	bounded := WithTimeout(logged, cfg.Timeout)
	return WithRetry(bounded, cfg.Retry), nil
}
