package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docquery-platform/internal/config"
	"docquery-platform/models"
)

func intPtr(n int) *int { return &n }

func TestBuildPromptOrdering(t *testing.T) {
	sources := []models.SourceChunk{
		{DocumentName: "geo.txt", Content: "The Nile is the longest river.", Page: intPtr(2)},
		{DocumentName: "atlas.pdf", Content: "Rivers of Africa."},
	}
	history := []models.ChatTurn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}

	system, prompt := BuildPrompt("What is the longest river?", sources, history)

	if !strings.Contains(system, RefusalMessage) {
		t.Error("system instruction must embed the refusal sentence")
	}

	histIdx := strings.Index(prompt, "User: hello")
	srcIdx := strings.Index(prompt, "[Source 1: geo.txt] (Page 2)")
	src2Idx := strings.Index(prompt, "[Source 2: atlas.pdf]")
	qIdx := strings.Index(prompt, "Question: What is the longest river?")
	if histIdx < 0 || srcIdx < 0 || src2Idx < 0 || qIdx < 0 {
		t.Fatalf("prompt missing sections:\n%s", prompt)
	}
	if !(histIdx < srcIdx && srcIdx < src2Idx && src2Idx < qIdx) {
		t.Errorf("sections out of order: history=%d source1=%d source2=%d question=%d", histIdx, srcIdx, src2Idx, qIdx)
	}
	if !strings.Contains(prompt, "---") {
		t.Error("evidence excerpts must be separated by a divider")
	}
	if strings.Contains(prompt, "atlas.pdf] (Page") {
		t.Error("sources without pagination must not render a page marker")
	}
}

func TestBuildPromptTruncatesHistory(t *testing.T) {
	history := make([]models.ChatTurn, 8)
	for i := range history {
		history[i] = models.ChatTurn{Role: "user", Content: strings.Repeat("x", i+1)}
	}

	_, prompt := BuildPrompt("q", nil, history)

	// Oldest 3 turns (len 1..3) must be dropped, newest 5 (len 4..8) kept.
	if strings.Contains(prompt, "User: xxx\n") {
		t.Error("history older than 5 turns must be dropped")
	}
	if !strings.Contains(prompt, "User: xxxx\n") {
		t.Error("newest 5 turns must be kept")
	}
}

func TestFallbackAnswer(t *testing.T) {
	if got := FallbackAnswer(nil); got != RefusalMessage {
		t.Errorf("empty evidence should yield the refusal message, got %q", got)
	}

	long := strings.Repeat("a", 600)
	sources := []models.SourceChunk{
		{DocumentName: "geo.txt", Content: long},
		{DocumentName: "b.pdf", Content: "short"},
		{DocumentName: "c.pdf", Content: "short"},
		{DocumentName: "d.pdf", Content: "must not appear"},
	}

	got := FallbackAnswer(sources)
	if !strings.Contains(got, "geo.txt") {
		t.Error("fallback must name the source document")
	}
	if strings.Contains(got, "d.pdf") {
		t.Error("fallback must cap at 3 sources")
	}
	if strings.Contains(got, strings.Repeat("a", 501)) {
		t.Error("snippets must be truncated to 500 characters")
	}
	if !strings.Contains(got, strings.Repeat("a", 500)+"...") {
		t.Error("truncated snippets must carry an ellipsis")
	}

	if again := FallbackAnswer(sources); again != got {
		t.Error("fallback must be deterministic")
	}
}

func TestOpenAICompatGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("bad auth header %q", got)
		}
		var req chatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "the answer"}}},
		})
	}))
	defer srv.Close()

	p := newOpenAICompat(ProviderGroq, "test-key", srv.URL)
	got, err := p.Generate(context.Background(), Request{
		Model:  "llama-3.3-70b-versatile",
		System: "sys",
		Prompt: "user prompt",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q", got)
	}
}

func TestOpenAICompatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newOpenAICompat(ProviderGroq, "k", srv.URL)
	if _, err := p.Generate(context.Background(), Request{Model: "m"}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestGeneratorFallsBackWithoutCredentials(t *testing.T) {
	// No API keys anywhere: every provider attempt fails on credentials
	// and the evidence fallback must be served, not an error.
	gen := NewGenerator(&config.Config{
		LLMProvider:       "anthropic",
		GenerationTimeout: time.Second,
	})

	sources := []models.SourceChunk{
		{DocumentName: "geo.txt", Content: "The Nile is the longest river in the world."},
	}
	res := gen.Answer(context.Background(), "longest river?", sources, nil, nil)

	if !res.Fallback {
		t.Fatal("expected fallback result")
	}
	if res.ModelUsed != "evidence-fallback" {
		t.Errorf("got model %q", res.ModelUsed)
	}
	if !strings.Contains(res.Answer, "geo.txt") || !strings.Contains(res.Answer, "longest river") {
		t.Errorf("fallback answer must surface the evidence, got %q", res.Answer)
	}
}

func TestGeneratorResolveSettings(t *testing.T) {
	gen := NewGenerator(&config.Config{LLMProvider: "groq", LLMModel: "llama-3.3-70b-versatile"})

	provider, model, temp, maxTokens := gen.resolve(nil)
	if provider != ProviderGroq || model != "llama-3.3-70b-versatile" {
		t.Errorf("nil settings: got %s/%s", provider, model)
	}
	if temp != 0.7 || maxTokens != 4096 {
		t.Errorf("nil settings: got temp %f maxTokens %d", temp, maxTokens)
	}

	provider, model, temp, _ = gen.resolve(&models.UserSettings{
		LLMProvider: "openai",
		Temperature: 0.2,
	})
	if provider != ProviderOpenAI {
		t.Errorf("settings provider ignored, got %s", provider)
	}
	if model != DefaultModel(ProviderOpenAI) {
		t.Errorf("provider switch must reset the model, got %s", model)
	}
	if temp != 0.2 {
		t.Errorf("got temp %f", temp)
	}

	provider, model, _, _ = gen.resolve(&models.UserSettings{LLMProvider: "not-a-provider", LLMModel: "custom"})
	if provider != ProviderGroq {
		t.Errorf("unknown provider must fall back to default, got %s", provider)
	}
	if model != "custom" {
		t.Errorf("explicit model must survive, got %s", model)
	}
}

func TestGeneratorPrefersUserKey(t *testing.T) {
	gen := NewGenerator(&config.Config{LLMProvider: "groq", OpenAIAPIKey: "system-key"})

	key := gen.apiKey(ProviderOpenAI, &models.UserSettings{OpenAIAPIKey: "user-key"})
	if key != "user-key" {
		t.Errorf("got %q", key)
	}
	if key := gen.apiKey(ProviderOpenAI, &models.UserSettings{}); key != "system-key" {
		t.Errorf("got %q", key)
	}
	if key := gen.apiKey(ProviderGroq, &models.UserSettings{OpenAIAPIKey: "user-key"}); key != "" {
		t.Errorf("groq has no user key field, got %q", key)
	}
}
