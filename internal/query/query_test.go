package query

import (
	"context"
	"math"
	"testing"

	"docquery-platform/internal/vectorstore"
)

func TestConfidenceEmpty(t *testing.T) {
	var p ConfidencePolicy
	if got := p.Score(nil); got != 0.0 {
		t.Errorf("empty scores must yield 0.0, got %f", got)
	}
}

func TestConfidenceSingleScore(t *testing.T) {
	var p ConfidencePolicy
	if got := p.Score([]float64{0.9}); got != 0.9 {
		t.Errorf("single score is its own confidence, got %f", got)
	}
}

func TestConfidenceWeightedMean(t *testing.T) {
	var p ConfidencePolicy
	// (1.0*1.0 + 0.5*0.8) / (1.0 + 0.8) = 1.4/1.8 = 0.7777...
	got := p.Score([]float64{1.0, 0.5})
	if got != 0.778 {
		t.Errorf("expected 0.778, got %f", got)
	}
}

func TestConfidenceIgnoresBeyondTopFive(t *testing.T) {
	var p ConfidencePolicy
	base := []float64{0.9, 0.8, 0.7, 0.6, 0.5}
	with := append(append([]float64{}, base...), 0.0, 0.0, 0.0)
	if p.Score(base) != p.Score(with) {
		t.Error("scores past the weight table must not affect confidence")
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	var p ConfidencePolicy
	low := p.Score([]float64{0.5, 0.4, 0.3})
	high := p.Score([]float64{0.9, 0.4, 0.3})
	if high <= low {
		t.Errorf("raising the top score must raise confidence: %f vs %f", high, low)
	}
}

func TestConfidenceBoundsAndRounding(t *testing.T) {
	var p ConfidencePolicy
	for _, scores := range [][]float64{
		{1.0, 1.0, 1.0, 1.0, 1.0},
		{0.123456},
		{0.0, 0.0},
	} {
		got := p.Score(scores)
		if got < 0 || got > 1 {
			t.Errorf("confidence out of bounds for %v: %f", scores, got)
		}
		if math.Round(got*1000)/1000 != got {
			t.Errorf("confidence not rounded to 3 decimals for %v: %v", scores, got)
		}
	}
}

func TestConfidenceCustomWeights(t *testing.T) {
	p := ConfidencePolicy{Weights: []float64{1.0}}
	// Only the top hit counts under a single-weight policy.
	if got := p.Score([]float64{0.6, 0.1, 0.1}); got != 0.6 {
		t.Errorf("expected 0.6, got %f", got)
	}
}

type fixedEmbedder struct {
	vectors map[string][]float32
	dim     int
}

func (f *fixedEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectors[t]
	}
	return out, nil
}

func (f *fixedEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func (f *fixedEmbedder) Dimension() int { return f.dim }

func TestRetrieveMapsHitsToSources(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore(3)
	store.EnsureCollection(ctx)

	store.Insert(ctx, []vectorstore.Record{
		{Content: "nile facts", DocumentID: "d1", UserID: "u1", ChunkIndex: 2, DocumentName: "geo.txt", PageNumber: 4, Vector: []float32{1, 0, 0}},
		{Content: "unrelated", DocumentID: "d2", UserID: "u1", ChunkIndex: 0, DocumentName: "misc.txt", PageNumber: 0, Vector: []float32{0, 1, 0}},
		{Content: "other tenant", DocumentID: "d3", UserID: "u2", ChunkIndex: 0, DocumentName: "x.txt", Vector: []float32{1, 0, 0}},
	})

	svc := &Service{
		store: store,
		embedder: &fixedEmbedder{
			dim:     3,
			vectors: map[string][]float32{"longest river": {1, 0, 0}},
		},
		searchLimit: 3,
	}

	sources, confidence, err := svc.Retrieve(ctx, "u1", "longest river", nil)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 tenant-scoped sources, got %d", len(sources))
	}

	top := sources[0]
	if top.DocumentName != "geo.txt" || top.ChunkID != 2 {
		t.Errorf("unexpected top source: %+v", top)
	}
	if top.Page == nil || *top.Page != 4 {
		t.Errorf("page number must map to a pointer, got %v", top.Page)
	}
	if sources[1].Page != nil {
		t.Errorf("page 0 must map to nil, got %v", sources[1].Page)
	}
	if confidence <= 0 || confidence > 1 {
		t.Errorf("confidence out of range: %f", confidence)
	}
}

func TestRetrieveNoEvidence(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore(3)
	store.EnsureCollection(ctx)

	svc := &Service{
		store: store,
		embedder: &fixedEmbedder{
			dim:     3,
			vectors: map[string][]float32{"anything": {1, 0, 0}},
		},
		searchLimit: 3,
	}

	sources, confidence, err := svc.Retrieve(ctx, "u1", "anything", nil)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("expected no sources, got %d", len(sources))
	}
	if confidence != 0.0 {
		t.Errorf("empty retrieval must score 0.0, got %f", confidence)
	}
}

func TestRetrieveDocumentScope(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore(2)
	store.EnsureCollection(ctx)

	store.Insert(ctx, []vectorstore.Record{
		{Content: "a", DocumentID: "d1", UserID: "u", Vector: []float32{1, 0}},
		{Content: "b", DocumentID: "d2", UserID: "u", Vector: []float32{1, 0}},
	})

	svc := &Service{
		store:       store,
		embedder:    &fixedEmbedder{dim: 2, vectors: map[string][]float32{"q": {1, 0}}},
		searchLimit: 5,
	}

	sources, _, err := svc.Retrieve(ctx, "u", "q", []string{"d2"})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(sources) != 1 || sources[0].DocumentID != "d2" {
		t.Fatalf("document scope not applied: %+v", sources)
	}
}
