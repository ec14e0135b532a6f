package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docquery-platform/internal/chunker"
	"docquery-platform/internal/extract"
	"docquery-platform/internal/vectorstore"
	"docquery-platform/models"
)

type hashEmbedder struct{ dim int }

func (h *hashEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, h.dim)
		for j, r := range t {
			v[j%h.dim] += float32(r)
		}
		out[i] = v
	}
	return out, nil
}

func (h *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vs, err := h.EmbedPassages(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (h *hashEmbedder) Dimension() int { return h.dim }

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestChunkPagesCarriesPageNumbers(t *testing.T) {
	c := &Coordinator{chunker: chunker.New(50, 10, 5)}
	doc := models.Document{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID()}

	rows, contents := c.chunkPages(doc, []extract.Page{
		{Number: 1, Text: words(120)},
		{Number: 2, Text: words(60)},
	})

	if len(rows) != len(contents) {
		t.Fatalf("rows and contents diverged: %d vs %d", len(rows), len(contents))
	}
	if len(rows) < 4 {
		t.Fatalf("expected chunks from both pages, got %d", len(rows))
	}

	for i, row := range rows {
		if row.ChunkIndex != i {
			t.Errorf("chunk index must be document-wide: row %d has index %d", i, row.ChunkIndex)
		}
		if row.StartPage == nil {
			t.Fatalf("paginated source must set page on row %d", i)
		}
	}
	if *rows[0].StartPage != 1 {
		t.Errorf("first chunk should come from page 1, got %d", *rows[0].StartPage)
	}
	if *rows[len(rows)-1].StartPage != 2 {
		t.Errorf("last chunk should come from page 2, got %d", *rows[len(rows)-1].StartPage)
	}
}

func TestChunkPagesUnpaginated(t *testing.T) {
	c := &Coordinator{chunker: chunker.New(50, 10, 5)}
	doc := models.Document{ID: primitive.NewObjectID(), UserID: primitive.NewObjectID()}

	rows, _ := c.chunkPages(doc, []extract.Page{{Number: 0, Text: words(30)}})
	if len(rows) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(rows))
	}
	if rows[0].StartPage != nil || rows[0].EndPage != nil {
		t.Error("unpaginated sources must not set page bounds")
	}
}

func TestEmbedAndIndexRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore(8)
	store.EnsureCollection(ctx)

	c := &Coordinator{
		store:    store,
		embedder: &hashEmbedder{dim: 8},
		chunker:  chunker.New(50, 10, 5),
	}

	doc := models.Document{
		ID:               primitive.NewObjectID(),
		UserID:           primitive.NewObjectID(),
		OriginalFilename: "geo.txt",
	}
	rows, contents := c.chunkPages(doc, []extract.Page{{Number: 1, Text: words(120)}})

	ids, err := c.embedAndIndex(ctx, doc, rows, contents)
	if err != nil {
		t.Fatalf("embed and index: %v", err)
	}
	if len(ids) != len(rows) {
		t.Fatalf("expected one vector id per chunk, got %d for %d chunks", len(ids), len(rows))
	}
	if store.Count(doc.ID.Hex()) != len(rows) {
		t.Errorf("store holds %d records, want %d", store.Count(doc.ID.Hex()), len(rows))
	}

	hits, err := store.Search(ctx, mustEmbed(t, c, contents[0]), doc.UserID.Hex(), nil, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].DocumentName != "geo.txt" {
		t.Errorf("document name not carried into the index: %q", hits[0].DocumentName)
	}
	if hits[0].PageNumber != 1 {
		t.Errorf("page number not carried into the index: %d", hits[0].PageNumber)
	}
}

func mustEmbed(t *testing.T, c *Coordinator, text string) []float32 {
	t.Helper()
	v, err := c.embedder.EmbedQuery(context.Background(), text)
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	return v
}

func TestLinkVectorsCountMismatch(t *testing.T) {
	c := &Coordinator{}
	err := c.linkVectors(context.Background(),
		[]primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()},
		[]string{"only-one"})
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

// fakeDocuments serves one document and records status transitions.
type fakeDocuments struct {
	doc      models.Document
	statuses []string
}

func (f *fakeDocuments) FindOne(_ context.Context, _ interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
	return mongo.NewSingleResultFromDocument(f.doc, nil, nil)
}

func (f *fakeDocuments) UpdateByID(_ context.Context, _ interface{}, update interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if m, ok := update.(bson.M); ok {
		if set, ok := m["$set"].(bson.M); ok {
			if status, ok := set["status"].(string); ok {
				f.statuses = append(f.statuses, status)
			}
		}
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (f *fakeDocuments) DeleteOne(_ context.Context, _ interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

// fakeChunks keeps chunk rows in memory.
type fakeChunks struct {
	rows []models.DocumentChunk
}

func (f *fakeChunks) InsertMany(_ context.Context, docs []interface{}, _ ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	ids := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		row := d.(models.DocumentChunk)
		row.ID = primitive.NewObjectID()
		f.rows = append(f.rows, row)
		ids = append(ids, row.ID)
	}
	return &mongo.InsertManyResult{InsertedIDs: ids}, nil
}

func (f *fakeChunks) DeleteMany(_ context.Context, _ interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	n := int64(len(f.rows))
	f.rows = nil
	return &mongo.DeleteResult{DeletedCount: n}, nil
}

func (f *fakeChunks) Find(_ context.Context, _ interface{}, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	docs := make([]interface{}, 0, len(f.rows))
	for _, r := range f.rows {
		docs = append(docs, r)
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (f *fakeChunks) BulkWrite(_ context.Context, writes []mongo.WriteModel, _ ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	return &mongo.BulkWriteResult{ModifiedCount: int64(len(writes))}, nil
}

// Reprocessing must replace derived data, never accumulate it: the
// vector and chunk-row counts stay constant across repeated runs.
func TestReprocessLeavesNoDuplicates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte(words(120)), 0o644); err != nil {
		t.Fatal(err)
	}

	docID := primitive.NewObjectID()
	docs := &fakeDocuments{doc: models.Document{
		ID:               docID,
		UserID:           primitive.NewObjectID(),
		FilePath:         path,
		OriginalFilename: "notes.txt",
	}}
	chunks := &fakeChunks{}
	store := vectorstore.NewMemoryStore(8)
	store.EnsureCollection(ctx)

	c := &Coordinator{
		documents: docs,
		chunks:    chunks,
		store:     store,
		embedder:  &hashEmbedder{dim: 8},
		chunker:   chunker.New(50, 10, 5),
	}

	if err := c.Process(ctx, docID); err != nil {
		t.Fatalf("process: %v", err)
	}
	wantVectors := store.Count(docID.Hex())
	wantRows := len(chunks.rows)
	if wantVectors == 0 || wantVectors != wantRows {
		t.Fatalf("bad baseline: %d vectors, %d rows", wantVectors, wantRows)
	}

	for run := 1; run <= 2; run++ {
		if err := c.Reprocess(ctx, docID); err != nil {
			t.Fatalf("reprocess run %d: %v", run, err)
		}
		if got := store.Count(docID.Hex()); got != wantVectors {
			t.Errorf("run %d: %d vectors in store, want %d", run, got, wantVectors)
		}
		if len(chunks.rows) != wantRows {
			t.Errorf("run %d: %d chunk rows, want %d", run, len(chunks.rows), wantRows)
		}
	}

	last := docs.statuses[len(docs.statuses)-1]
	if last != models.StatusCompleted {
		t.Errorf("final status %q, want %q", last, models.StatusCompleted)
	}
}

func TestReadingTime(t *testing.T) {
	cases := []struct {
		words, want int
	}{
		{0, 0},
		{1, 1},
		{199, 1},
		{200, 1},
		{201, 2},
		{1000, 5},
	}
	for _, tc := range cases {
		if got := readingTime(tc.words); got != tc.want {
			t.Errorf("readingTime(%d) = %d, want %d", tc.words, got, tc.want)
		}
	}
}
