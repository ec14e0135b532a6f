package llm

import (
	"context"
	"errors"
	"fmt"
)

// Supported provider names. The provider field on user settings is one
// of these; anything else is rejected at the settings layer.
const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

var ErrNoCredentials = errors.New("llm: no API key configured for provider")

// Request is a provider-agnostic generation request. The prompt is
// already fully assembled; providers only translate it to their wire
// format.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Provider generates a completion for an assembled prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// DefaultModel is the model used when user settings carry a provider
// but no model, or a model belonging to a different provider family.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGroq:
		return "llama-3.3-70b-versatile"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-20241022"
	case ProviderGemini:
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

// KnownProvider reports whether name is a supported provider.
func KnownProvider(name string) bool {
	switch name {
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		return true
	}
	return false
}

func newProvider(name, apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoCredentials, name)
	}
	switch name {
	case ProviderGroq:
		return newOpenAICompat(ProviderGroq, apiKey, groqEndpoint), nil
	case ProviderOpenAI:
		return newOpenAICompat(ProviderOpenAI, apiKey, openAIEndpoint), nil
	case ProviderAnthropic:
		return newAnthropic(apiKey), nil
	case ProviderGemini:
		return newGemini(apiKey), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}
