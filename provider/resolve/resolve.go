// Package resolve builds a codex.Provider from provider-agnostic
// configuration (the CLI's --model flag and environment variables), so
// cmd/codex doesn't need to know about every OpenAI-compatible endpoint's
// base URL by name.
package resolve

import (
	"fmt"

	codex "github.com/samooth/open-codex-sub001"
	"github.com/samooth/open-codex-sub001/provider/openaicompat"
)

// Config holds provider-agnostic configuration for creating a chat Provider.
type Config struct {
	Provider string // "openai", "groq", "deepseek", "together", "mistral", "ollama", "openrouter"
	APIKey   string
	Model    string
	BaseURL  string // overrides the provider's default base URL

	// Common cross-provider sampling options (nil = use provider default).
	Temperature *float64
	TopP        *float64
}

// Provider creates a codex.Provider from a provider-agnostic Config.
func Provider(cfg Config) (codex.Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("resolve: provider name is required")
	}
	if defaultBaseURL(cfg.Provider) == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("resolve: unknown provider %q (set BaseURL explicitly)", cfg.Provider)
	}
	return openaiCompatProvider(cfg), nil
}

func openaiCompatProvider(cfg Config) codex.Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(cfg.Provider)
	}
	var provOpts []openaicompat.ProviderOption
	provOpts = append(provOpts, openaicompat.WithName(cfg.Provider))

	var reqOpts []openaicompat.Option
	if cfg.Temperature != nil {
		reqOpts = append(reqOpts, openaicompat.WithTemperature(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		reqOpts = append(reqOpts, openaicompat.WithTopP(*cfg.TopP))
	}
	if len(reqOpts) > 0 {
		provOpts = append(provOpts, openaicompat.WithOptions(reqOpts...))
	}
	return openaicompat.NewProvider(cfg.APIKey, cfg.Model, baseURL, provOpts...)
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1"
	case "openrouter":
		return "https://openrouter.ai/api/v1"
	case "groq":
		return "https://api.groq.com/openai/v1"
	case "deepseek":
		return "https://api.deepseek.com/v1"
	case "together":
		return "https://api.together.xyz/v1"
	case "mistral":
		return "https://api.mistral.ai/v1"
	case "ollama":
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}
