package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docquery-platform/internal/config"
	"docquery-platform/internal/logger"
	"docquery-platform/models"
)

// Result is the outcome of one grounded generation. Fallback marks
// answers assembled from raw evidence after every provider attempt
// failed; those still succeed from the caller's point of view.
type Result struct {
	Answer    string
	ModelUsed string
	Fallback  bool
}

// Generator resolves provider settings per call and produces grounded
// answers. It never returns an error for a generation failure: the
// degradation ladder ends at a deterministic evidence fallback.
type Generator struct {
	defaultProvider string
	defaultModel    string
	systemKeys      map[string]string
	timeout         time.Duration
	limiter         *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewGenerator(cfg *config.Config) *Generator {
	defaultProvider := cfg.LLMProvider
	if !KnownProvider(defaultProvider) {
		defaultProvider = ProviderGroq
	}
	defaultModel := cfg.LLMModel
	if defaultModel == "" {
		defaultModel = DefaultModel(defaultProvider)
	}
	timeout := cfg.GenerationTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Generator{
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		systemKeys: map[string]string{
			ProviderGroq:      cfg.GroqAPIKey,
			ProviderOpenAI:    cfg.OpenAIAPIKey,
			ProviderAnthropic: cfg.AnthropicAPIKey,
			ProviderGemini:    cfg.GeminiAPIKey,
		},
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(10), 20),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Answer builds the prompt, walks the provider degradation ladder and
// always produces a response the caller can show to the user.
func (g *Generator) Answer(ctx context.Context, question string, sources []models.SourceChunk, history []models.ChatTurn, settings *models.UserSettings) Result {
	system, prompt := BuildPrompt(question, sources, history)

	provider, model, temperature, maxTokens := g.resolve(settings)
	req := Request{
		Model:       model,
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	answer, usedModel, err := g.generate(ctx, provider, settings, req)
	if err != nil && provider != g.defaultProvider {
		// Misconfigured or failing user-chosen provider: retry once on
		// the system default before degrading to raw evidence.
		logger.Warn("Provider failed, retrying on default",
			"provider", provider, "default", g.defaultProvider, "error", err)
		req.Model = g.defaultModel
		answer, usedModel, err = g.generate(ctx, g.defaultProvider, settings, req)
	}
	if err != nil {
		logger.Error("All generation attempts failed, serving evidence fallback", "error", err)
		return Result{
			Answer:    FallbackAnswer(sources),
			ModelUsed: "evidence-fallback",
			Fallback:  true,
		}
	}
	return Result{Answer: answer, ModelUsed: usedModel}
}

// Complete runs a raw completion outside the RAG prompt, e.g. for
// summarization. Unlike Answer it surfaces failures to the caller.
func (g *Generator) Complete(ctx context.Context, system, prompt string, settings *models.UserSettings) (string, error) {
	provider, model, temperature, maxTokens := g.resolve(settings)
	req := Request{
		Model:       model,
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	answer, _, err := g.generate(ctx, provider, settings, req)
	if err != nil && provider != g.defaultProvider {
		req.Model = g.defaultModel
		answer, _, err = g.generate(ctx, g.defaultProvider, settings, req)
	}
	return answer, err
}

func (g *Generator) generate(ctx context.Context, providerName string, settings *models.UserSettings, req Request) (string, string, error) {
	key := g.apiKey(providerName, settings)
	provider, err := newProvider(providerName, key)
	if err != nil {
		return "", "", err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.breaker(providerName).Execute(func() (interface{}, error) {
		return provider.Generate(callCtx, req)
	})
	if err != nil {
		return "", "", err
	}
	return out.(string), providerName + "/" + req.Model, nil
}

// resolve maps user settings onto a concrete provider, model and
// sampling parameters, falling back to system defaults field by field.
func (g *Generator) resolve(settings *models.UserSettings) (provider, model string, temperature float64, maxTokens int) {
	provider = g.defaultProvider
	model = g.defaultModel
	temperature = 0.7
	maxTokens = 4096

	if settings == nil {
		return
	}
	if KnownProvider(settings.LLMProvider) {
		provider = settings.LLMProvider
		model = DefaultModel(provider)
	}
	if settings.LLMModel != "" {
		model = settings.LLMModel
	}
	if settings.Temperature > 0 {
		temperature = settings.Temperature
	}
	if settings.MaxTokens > 0 {
		maxTokens = settings.MaxTokens
	}
	return
}

// apiKey prefers the user's own key, then the deployment-wide key.
func (g *Generator) apiKey(provider string, settings *models.UserSettings) string {
	if settings != nil {
		switch provider {
		case ProviderOpenAI:
			if settings.OpenAIAPIKey != "" {
				return settings.OpenAIAPIKey
			}
		case ProviderAnthropic:
			if settings.AnthropicAPIKey != "" {
				return settings.AnthropicAPIKey
			}
		case ProviderGemini:
			if settings.GeminiAPIKey != "" {
				return settings.GeminiAPIKey
			}
		}
	}
	return g.systemKeys[provider]
}

func (g *Generator) breaker(provider string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[provider]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-" + provider,
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	g.breakers[provider] = cb
	return cb
}

// IsCredentialError reports whether err means the provider had no key
// configured, as opposed to a live call failing.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrNoCredentials)
}
