package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docquery-platform/internal/logger"
)

// MilvusStore talks to a Milvus or Zilliz Cloud deployment over the
// v2 RESTful API. It is the default backend.
type MilvusStore struct {
	baseURL    string
	token      string
	collection string
	dimension  int
	client     *http.Client
}

func NewMilvusStore(cfg Config) (*MilvusStore, error) {
	if cfg.MilvusURI == "" {
		return nil, fmt.Errorf("vectorstore: milvus URI is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &MilvusStore{
		baseURL:    strings.TrimRight(cfg.MilvusURI, "/"),
		token:      cfg.MilvusToken,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type milvusResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (m *MilvusStore) post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("milvus: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("milvus: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: milvus returned HTTP %d: %s", ErrBadRequest, resp.StatusCode, string(raw))
	}

	var parsed milvusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("milvus: decode response: %w", err)
	}
	if parsed.Code != 0 {
		if strings.Contains(parsed.Message, "can't find collection") ||
			strings.Contains(parsed.Message, "collection not found") {
			return nil, fmt.Errorf("%w: %s", ErrCollectionMissing, parsed.Message)
		}
		return nil, fmt.Errorf("%w: milvus code %d: %s", ErrBadRequest, parsed.Code, parsed.Message)
	}
	return parsed.Data, nil
}

func (m *MilvusStore) hasCollection(ctx context.Context) (bool, error) {
	data, err := m.post(ctx, "/v2/vectordb/collections/has", map[string]any{
		"collectionName": m.collection,
	})
	if err != nil {
		return false, err
	}
	var out struct {
		Has bool `json:"has"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return false, fmt.Errorf("milvus: decode has-collection: %w", err)
	}
	return out.Has, nil
}

func (m *MilvusStore) EnsureCollection(ctx context.Context) error {
	exists, err := m.hasCollection(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	schema := map[string]any{
		"autoId":             true,
		"enableDynamicField": false,
		"fields": []map[string]any{
			{"fieldName": "id", "dataType": "Int64", "isPrimary": true},
			{"fieldName": FieldContent, "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "65535"}},
			{"fieldName": FieldDocumentID, "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "64"}},
			{"fieldName": FieldUserID, "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "64"}},
			{"fieldName": FieldChunkIndex, "dataType": "Int64"},
			{"fieldName": FieldDocumentName, "dataType": "VarChar", "elementTypeParams": map[string]string{"max_length": "512"}},
			{"fieldName": FieldPageNumber, "dataType": "Int64"},
			{"fieldName": FieldVector, "dataType": "FloatVector", "elementTypeParams": map[string]string{"dim": strconv.Itoa(m.dimension)}},
		},
	}
	indexParams := []map[string]any{
		{"fieldName": FieldVector, "indexName": "vector_index", "metricType": "COSINE"},
	}

	_, err = m.post(ctx, "/v2/vectordb/collections/create", map[string]any{
		"collectionName": m.collection,
		"schema":         schema,
		"indexParams":    indexParams,
	})
	if err != nil {
		return err
	}
	logger.Info("Created vector collection", "collection", m.collection, "dimension", m.dimension)
	return nil
}

func (m *MilvusStore) Insert(ctx context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if err := validateBatch(records, m.dimension); err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]any{
			FieldContent:      r.Content,
			FieldDocumentID:   r.DocumentID,
			FieldUserID:       r.UserID,
			FieldChunkIndex:   r.ChunkIndex,
			FieldDocumentName: r.DocumentName,
			FieldPageNumber:   r.PageNumber,
			FieldVector:       r.Vector,
		})
	}

	data, err := m.post(ctx, "/v2/vectordb/entities/insert", map[string]any{
		"collectionName": m.collection,
		"data":           rows,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		InsertCount int               `json:"insertCount"`
		InsertIDs   []json.RawMessage `json:"insertIds"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("milvus: decode insert response: %w", err)
	}
	if out.InsertCount != len(records) {
		return nil, fmt.Errorf("%w: inserted %d of %d records", ErrBadRequest, out.InsertCount, len(records))
	}

	// Auto-generated ids come back either as numbers or strings
	// depending on the primary key type.
	ids := make([]string, 0, len(out.InsertIDs))
	for _, raw := range out.InsertIDs {
		ids = append(ids, strings.Trim(string(raw), `"`))
	}
	return ids, nil
}

func (m *MilvusStore) Search(ctx context.Context, vector []float32, userID string, documentIDs []string, limit int) ([]RetrievalResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: search requires a user scope", ErrBadRequest)
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d", ErrBadRequest, len(vector), m.dimension)
	}

	filter := fmt.Sprintf(`%s == %q`, FieldUserID, userID)
	if len(documentIDs) > 0 {
		quoted := make([]string, 0, len(documentIDs))
		for _, id := range documentIDs {
			quoted = append(quoted, strconv.Quote(id))
		}
		filter += fmt.Sprintf(` and %s in [%s]`, FieldDocumentID, strings.Join(quoted, ", "))
	}

	data, err := m.post(ctx, "/v2/vectordb/entities/search", map[string]any{
		"collectionName": m.collection,
		"data":           [][]float32{vector},
		"annsField":      FieldVector,
		"filter":         filter,
		"limit":          limit,
		"outputFields": []string{
			FieldContent, FieldDocumentID, FieldUserID,
			FieldChunkIndex, FieldDocumentName, FieldPageNumber,
		},
	})
	if err != nil {
		return nil, err
	}

	var hits []struct {
		ID           json.RawMessage `json:"id"`
		Distance     float64         `json:"distance"`
		Content      string          `json:"content"`
		DocumentID   string          `json:"document_id"`
		ChunkIndex   int             `json:"chunk_index"`
		DocumentName string          `json:"document_name"`
		PageNumber   int             `json:"page_number"`
	}
	if err := json.Unmarshal(data, &hits); err != nil {
		return nil, fmt.Errorf("milvus: decode search response: %w", err)
	}

	results := make([]RetrievalResult, 0, len(hits))
	for _, h := range hits {
		// COSINE metric reports similarity; normalize to the distance
		// convention so score stays 1 - distance across backends.
		distance := 1 - h.Distance
		results = append(results, RetrievalResult{
			VectorID:     strings.Trim(string(h.ID), `"`),
			Content:      h.Content,
			DocumentID:   h.DocumentID,
			DocumentName: h.DocumentName,
			ChunkIndex:   h.ChunkIndex,
			PageNumber:   h.PageNumber,
			Score:        clampScore(1 - distance),
			Distance:     distance,
		})
	}
	return results, nil
}

func (m *MilvusStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := m.post(ctx, "/v2/vectordb/entities/delete", map[string]any{
		"collectionName": m.collection,
		"filter":         fmt.Sprintf(`%s == %q`, FieldDocumentID, documentID),
	})
	return err
}

func (m *MilvusStore) HealthCheck(ctx context.Context) bool {
	exists, err := m.hasCollection(ctx)
	return err == nil && exists
}

func (m *MilvusStore) Reset(ctx context.Context) error {
	exists, err := m.hasCollection(ctx)
	if err != nil {
		return err
	}
	if exists {
		if _, err := m.post(ctx, "/v2/vectordb/collections/drop", map[string]any{
			"collectionName": m.collection,
		}); err != nil {
			return err
		}
		logger.Warn("Dropped vector collection", "collection", m.collection)
	}
	return m.EnsureCollection(ctx)
}

func (m *MilvusStore) Close() error {
	m.client.CloseIdleConnections()
	return nil
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
