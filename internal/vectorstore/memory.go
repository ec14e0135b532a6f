package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore keeps records in process memory with exact cosine
// scoring. It backs tests and local development; it is not meant to
// hold production-sized corpora.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	created   bool
	nextID    int64
	records   map[string]Record
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		records:   make(map[string]Record),
	}
}

func (s *MemoryStore) EnsureCollection(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, records []Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if err := validateBatch(records, s.dimension); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return nil, ErrCollectionMissing
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		s.nextID++
		id := strconv.FormatInt(s.nextID, 10)
		s.records[id] = r
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, userID string, documentIDs []string, limit int) ([]RetrievalResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: search requires a user scope", ErrBadRequest)
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection expects %d", ErrBadRequest, len(vector), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.created {
		return nil, ErrCollectionMissing
	}

	allowed := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		allowed[id] = true
	}

	var results []RetrievalResult
	for id, r := range s.records {
		if r.UserID != userID {
			continue
		}
		if len(allowed) > 0 && !allowed[r.DocumentID] {
			continue
		}
		score := cosineSimilarity(vector, r.Vector)
		results = append(results, RetrievalResult{
			VectorID:     id,
			Content:      r.Content,
			DocumentID:   r.DocumentID,
			DocumentName: r.DocumentName,
			ChunkIndex:   r.ChunkIndex,
			PageNumber:   r.PageNumber,
			Score:        clampScore(score),
			Distance:     1 - score,
		})
	}

	sort.Slice(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return ErrCollectionMissing
	}
	for id, r := range s.records {
		if r.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)
	s.created = true
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Count reports stored records, optionally narrowed to one document.
// Test helper.
func (s *MemoryStore) Count(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if documentID == "" {
		return len(s.records)
	}
	n := 0
	for _, r := range s.records {
		if r.DocumentID == documentID {
			n++
		}
	}
	return n
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
