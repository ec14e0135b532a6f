package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func vec(dim int, vals ...float32) []float32 {
	v := make([]float32, dim)
	copy(v, vals)
	return v
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	store := NewMemoryStore(4)
	ctx := context.Background()
	if err := store.EnsureCollection(ctx); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}

	_, err := store.Insert(ctx, []Record{
		{Content: "alice chunk", DocumentID: "doc-a", UserID: "alice", Vector: vec(4, 1, 0, 0, 0)},
		{Content: "bob chunk", DocumentID: "doc-b", UserID: "bob", Vector: vec(4, 1, 0, 0, 0)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := store.Search(ctx, vec(4, 1, 0, 0, 0), "alice", nil, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result for alice, got %d", len(results))
	}
	if results[0].Content != "alice chunk" {
		t.Errorf("tenant filter leaked: got %q", results[0].Content)
	}

	if _, err := store.Search(ctx, vec(4, 1, 0, 0, 0), "", nil, 10); err == nil {
		t.Error("expected error for unscoped search")
	}
}

func TestMemoryStoreDocumentFilter(t *testing.T) {
	store := NewMemoryStore(4)
	ctx := context.Background()
	store.EnsureCollection(ctx)

	_, err := store.Insert(ctx, []Record{
		{Content: "in doc one", DocumentID: "d1", UserID: "u", Vector: vec(4, 1, 0, 0, 0)},
		{Content: "in doc two", DocumentID: "d2", UserID: "u", Vector: vec(4, 0.9, 0.1, 0, 0)},
		{Content: "in doc three", DocumentID: "d3", UserID: "u", Vector: vec(4, 0.8, 0.2, 0, 0)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := store.Search(ctx, vec(4, 1, 0, 0, 0), "u", []string{"d1", "d3"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results with document filter, got %d", len(results))
	}
	for _, r := range results {
		if r.DocumentID == "d2" {
			t.Errorf("document filter leaked d2")
		}
	}
}

func TestMemoryStoreRankingAndLimit(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	store.EnsureCollection(ctx)

	_, err := store.Insert(ctx, []Record{
		{Content: "far", DocumentID: "d", UserID: "u", ChunkIndex: 0, Vector: vec(3, 0, 1, 0)},
		{Content: "exact", DocumentID: "d", UserID: "u", ChunkIndex: 1, Vector: vec(3, 1, 0, 0)},
		{Content: "near", DocumentID: "d", UserID: "u", ChunkIndex: 2, Vector: vec(3, 0.9, 0.1, 0)},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	results, err := store.Search(ctx, vec(3, 1, 0, 0), "u", nil, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("limit not applied, got %d results", len(results))
	}
	if results[0].Content != "exact" || results[1].Content != "near" {
		t.Errorf("unexpected ranking: %q then %q", results[0].Content, results[1].Content)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("scores not descending: %f < %f", results[0].Score, results[1].Score)
	}
	if results[0].Score < 0.999 {
		t.Errorf("identical vectors should score ~1.0, got %f", results[0].Score)
	}
}

func TestMemoryStoreDeleteByDocument(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	store.EnsureCollection(ctx)

	store.Insert(ctx, []Record{
		{Content: "a", DocumentID: "keep", UserID: "u", Vector: vec(2, 1, 0)},
		{Content: "b", DocumentID: "drop", UserID: "u", Vector: vec(2, 0, 1)},
		{Content: "c", DocumentID: "drop", UserID: "u", Vector: vec(2, 1, 1)},
	})

	if err := store.DeleteByDocument(ctx, "drop"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := store.Count("drop"); got != 0 {
		t.Errorf("expected 0 records for deleted document, got %d", got)
	}
	if got := store.Count("keep"); got != 1 {
		t.Errorf("expected surviving document untouched, got %d records", got)
	}
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	store := NewMemoryStore(4)
	ctx := context.Background()
	store.EnsureCollection(ctx)

	_, err := store.Insert(ctx, []Record{
		{Content: "ok", DocumentID: "d", UserID: "u", Vector: vec(4, 1)},
		{Content: "bad", DocumentID: "d", UserID: "u", Vector: []float32{1, 2}},
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if store.Count("") != 0 {
		t.Error("failed batch must not partially commit")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "pinecone"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestMilvusSearchFilterAndScores(t *testing.T) {
	var gotFilter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/entities/search") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotFilter, _ = body["filter"].(string)
		// Milvus reports cosine similarity in the distance field.
		w.Write([]byte(`{"code":0,"data":[
			{"id":101,"distance":0.91,"content":"top","document_id":"d1","chunk_index":0,"document_name":"a.pdf","page_number":3},
			{"id":102,"distance":0.42,"content":"second","document_id":"d1","chunk_index":4,"document_name":"a.pdf","page_number":7}
		]}`))
	}))
	defer srv.Close()

	store, err := NewMilvusStore(Config{MilvusURI: srv.URL, Collection: "chunks", Dimension: 3})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	results, err := store.Search(context.Background(), []float32{1, 0, 0}, "u-9", []string{"d1", "d2"}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if !strings.Contains(gotFilter, `user_id == "u-9"`) {
		t.Errorf("filter missing user scope: %s", gotFilter)
	}
	if !strings.Contains(gotFilter, `document_id in ["d1", "d2"]`) {
		t.Errorf("filter missing document set: %s", gotFilter)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].VectorID != "101" {
		t.Errorf("expected id 101, got %s", results[0].VectorID)
	}
	if diff := results[0].Score - 0.91; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected score 0.91, got %f", results[0].Score)
	}
	if diff := results[0].Distance - 0.09; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected distance 0.09, got %f", results[0].Distance)
	}
}

func TestMilvusInsertCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"insertCount":1,"insertIds":[7]}}`))
	}))
	defer srv.Close()

	store, _ := NewMilvusStore(Config{MilvusURI: srv.URL, Collection: "chunks", Dimension: 2})
	_, err := store.Insert(context.Background(), []Record{
		{Content: "a", DocumentID: "d", UserID: "u", Vector: []float32{1, 0}},
		{Content: "b", DocumentID: "d", UserID: "u", Vector: []float32{0, 1}},
	})
	if err == nil {
		t.Fatal("expected error when backend accepts a partial batch")
	}
}

func TestMilvusCollectionMissingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":100,"message":"can't find collection: chunks"}`))
	}))
	defer srv.Close()

	store, _ := NewMilvusStore(Config{MilvusURI: srv.URL, Collection: "chunks", Dimension: 2})
	err := store.DeleteByDocument(context.Background(), "d")
	if !errorsIsMissing(err) {
		t.Fatalf("expected collection-missing error, got %v", err)
	}
}

func TestQdrantSearchBuildsMustFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Filter struct {
				Must []map[string]any `json:"must"`
			} `json:"filter"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Filter.Must) != 2 {
			t.Errorf("expected 2 must clauses, got %d", len(body.Filter.Must))
		}
		w.Write([]byte(`{"status":"ok","result":[
			{"id":"ab-12","score":0.77,"payload":{"content":"hit","document_id":"d1","chunk_index":2,"document_name":"n.txt","page_number":0}}
		]}`))
	}))
	defer srv.Close()

	store := NewQdrantStore(Config{QdrantURL: srv.URL, Collection: "chunks", Dimension: 2})
	results, err := store.Search(context.Background(), []float32{1, 0}, "u", []string{"d1"}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Score != 0.77 || results[0].VectorID != "ab-12" {
		t.Fatalf("unexpected results: %+v", results)
	}
}
