package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/lazypower/interest/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// Topic extraction wants short, repeatable answers.
const (
	extractionTemperature = 0.2
	extractionMaxTokens   = 64
)

// Provider defaults used when the config leaves a model or URL empty.
const (
	defaultCLIModel       = "haiku"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultOllamaURL      = "http://localhost:11434"
	defaultOllamaModel    = "llama3.2"
)

// ErrNoAPIKey is returned for the anthropic provider without a key.
var ErrNoAPIKey = errors.New("anthropic provider requires ANTHROPIC_API_KEY or llm.anthropic_key")

// NewClient builds the client named by cfg.Provider.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "claude-cli":
		return NewClaudeCLI(or(cfg.Model, defaultCLIModel), cfg.Timeout), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, ErrNoAPIKey
		}
		model := cfg.Model
		if model == defaultCLIModel {
			// "haiku" is the CLI alias; the API needs a full model id.
			model = ""
		}
		return NewAnthropic(cfg.AnthropicKey, or(model, defaultAnthropicModel), cfg.Timeout), nil
	case "ollama":
		return NewOllama(or(cfg.OllamaURL, defaultOllamaURL), or(cfg.OllamaModel, defaultOllamaModel), cfg.Timeout), nil
	case "mock":
		return &MockClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (want claude-cli, anthropic, ollama or mock)", cfg.Provider)
	}
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
