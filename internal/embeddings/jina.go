package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"docquery-platform/internal/logger"
)

// Embedding task modes understood by the Jina API
const (
	taskPassage = "retrieval.passage"
	taskQuery   = "retrieval.query"
)

// JinaClient talks to the Jina embeddings REST API
// (jina-embeddings-v3, 1024 dimensions by default).
type JinaClient struct {
	apiKey    string
	apiURL    string
	model     string
	dimension int
	client    *http.Client
	limiter   *rate.Limiter
}

type JinaConfig struct {
	APIKey    string
	APIURL    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewJinaClient builds a client. An API key is required; there is no
// offline fallback because silent empty vectors would poison the index.
func NewJinaClient(cfg JinaConfig) (*JinaClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("jina: API key is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.jina.ai/v1/embeddings"
	}
	if cfg.Model == "" {
		cfg.Model = "jina-embeddings-v3"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1024
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &JinaClient{
		apiKey:    cfg.APIKey,
		apiURL:    cfg.APIURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(5), 10), // free-tier friendly
	}, nil
}

func (j *JinaClient) Dimension() int {
	return j.dimension
}

// EmbedPassages embeds document chunks in one batched call tagged with
// the passage task.
func (j *JinaClient) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := j.embed(ctx, texts, taskPassage)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("jina: got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery embeds a search query with the query task for better
// asymmetric retrieval accuracy.
func (j *JinaClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := j.embed(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("jina: got %d embeddings for a single query", len(vectors))
	}
	return vectors[0], nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
	Task  string   `json:"task"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (j *JinaClient) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if err := j.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(embedRequest{
		Model: j.model,
		Input: texts,
		Task:  task,
	})
	if err != nil {
		return nil, fmt.Errorf("jina: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+j.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error("Jina embedding request rejected", "status", resp.StatusCode, "task", task)
		return nil, fmt.Errorf("jina: API returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("jina: decode response: %w", err)
	}

	// Re-sort by the provider's declared index; response order is not
	// guaranteed to match request order.
	sort.Slice(parsed.Data, func(a, b int) bool {
		return parsed.Data[a].Index < parsed.Data[b].Index
	})

	vectors := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		if len(d.Embedding) != j.dimension {
			return nil, fmt.Errorf("jina: embedding dimension %d does not match expected %d", len(d.Embedding), j.dimension)
		}
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}
