package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"docquery-platform/internal/logger"
)

// QdrantStore is an alternative backend over the Qdrant REST API.
// Point ids are client-generated UUIDs; chunk metadata lives in the
// point payload.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

func NewQdrantStore(cfg Config) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(cfg.QdrantURL, "/"),
		apiKey:     cfg.QdrantAPIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

func (q *QdrantStore) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("qdrant: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionMissing, string(raw))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: qdrant returned HTTP %d: %s", ErrBadRequest, resp.StatusCode, string(raw))
	}

	var parsed struct {
		Status json.RawMessage `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("qdrant: decode response: %w", err)
	}
	return parsed.Result, nil
}

func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	_, err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil)
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "doesn't exist") && !errorsIsMissing(err) {
		return err
	}

	_, err = q.do(ctx, http.MethodPut, "/collections/"+q.collection, map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return err
	}
	logger.Info("Created vector collection", "collection", q.collection, "dimension", q.dimension)
	return nil
}

func errorsIsMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), ErrCollectionMissing.Error())
}

func (q *QdrantStore) Insert(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if err := validateBatch(records, q.dimension); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	points := make([]map[string]any, 0, len(records))
	for _, r := range records {
		id := uuid.NewString()
		ids = append(ids, id)
		points = append(points, map[string]any{
			"id":     id,
			"vector": r.Vector,
			"payload": map[string]any{
				FieldContent:      r.Content,
				FieldDocumentID:   r.DocumentID,
				FieldUserID:       r.UserID,
				FieldChunkIndex:   r.ChunkIndex,
				FieldDocumentName: r.DocumentName,
				FieldPageNumber:   r.PageNumber,
			},
		})
	}

	_, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", map[string]any{
		"points": points,
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (q *QdrantStore) Search(ctx context.Context, vector []float32, userID string, documentIDs []string, limit int) ([]RetrievalResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: search requires a user scope", ErrBadRequest)
	}
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d", ErrBadRequest, len(vector), q.dimension)
	}

	must := []map[string]any{
		{"key": FieldUserID, "match": map[string]any{"value": userID}},
	}
	if len(documentIDs) > 0 {
		must = append(must, map[string]any{
			"key":   FieldDocumentID,
			"match": map[string]any{"any": documentIDs},
		})
	}

	result, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", map[string]any{
		"vector":       vector,
		"limit":        limit,
		"filter":       map[string]any{"must": must},
		"with_payload": true,
	})
	if err != nil {
		return nil, err
	}

	var hits []struct {
		ID      string  `json:"id"`
		Score   float64 `json:"score"`
		Payload struct {
			Content      string `json:"content"`
			DocumentID   string `json:"document_id"`
			ChunkIndex   int    `json:"chunk_index"`
			DocumentName string `json:"document_name"`
			PageNumber   int    `json:"page_number"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(result, &hits); err != nil {
		return nil, fmt.Errorf("qdrant: decode search response: %w", err)
	}

	results := make([]RetrievalResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, RetrievalResult{
			VectorID:     h.ID,
			Content:      h.Payload.Content,
			DocumentID:   h.Payload.DocumentID,
			DocumentName: h.Payload.DocumentName,
			ChunkIndex:   h.Payload.ChunkIndex,
			PageNumber:   h.Payload.PageNumber,
			Score:        clampScore(h.Score),
			Distance:     1 - h.Score,
		})
	}
	return results, nil
}

func (q *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": FieldDocumentID, "match": map[string]any{"value": documentID}},
			},
		},
	})
	return err
}

func (q *QdrantStore) HealthCheck(ctx context.Context) bool {
	_, err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil)
	return err == nil
}

func (q *QdrantStore) Reset(ctx context.Context) error {
	if _, err := q.do(ctx, http.MethodDelete, "/collections/"+q.collection, nil); err != nil && !errorsIsMissing(err) {
		return err
	}
	logger.Warn("Dropped vector collection", "collection", q.collection)
	return q.EnsureCollection(ctx)
}

func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}
