package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func newTestClient(t *testing.T, url string, dim int) *JinaClient {
	t.Helper()
	c, err := NewJinaClient(JinaConfig{APIKey: "test-key", APIURL: url, Dimension: dim})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestJinaRequiresAPIKey(t *testing.T) {
	if _, err := NewJinaClient(JinaConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestEmbedPassagesTaskAndOrder(t *testing.T) {
	var gotTask string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("bad auth header %q", got)
		}
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotTask = req.Task

		// Deliberately out of order; the client must re-sort by index.
		w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	vectors, err := c.EmbedPassages(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if gotTask != "retrieval.passage" {
		t.Errorf("got task %q", gotTask)
	}
	want := [][]float32{{1, 0}, {0, 1}}
	if !reflect.DeepEqual(vectors, want) {
		t.Errorf("response not re-sorted by index: %v", vectors)
	}
}

func TestEmbedQueryTask(t *testing.T) {
	var gotTask string
	var gotInputs int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotTask = req.Task
		gotInputs = len(req.Input)
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	vec, err := c.EmbedQuery(context.Background(), "what is this")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if gotTask != "retrieval.query" {
		t.Errorf("got task %q", gotTask)
	}
	if gotInputs != 1 {
		t.Errorf("query must be a single input, got %d", gotInputs)
	}
	if len(vec) != 2 {
		t.Errorf("got %d dims", len(vec))
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	if _, err := c.EmbedPassages(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when provider returns too few embeddings")
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"index":0,"embedding":[1,0,0]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	if _, err := c.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatal("expected error on wrong embedding dimension")
	}
}

func TestEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	if _, err := c.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatal("expected error on 401")
	}
}

func TestEmbedPassagesEmptyInput(t *testing.T) {
	c := newTestClient(t, "http://unreachable.invalid", 2)
	vectors, err := c.EmbedPassages(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty input must not call the API: %v", err)
	}
	if vectors != nil {
		t.Errorf("got %v", vectors)
	}
}
