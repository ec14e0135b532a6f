package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Collection field names. The schema is fixed for the lifetime of the
// deployment; changing the embedding dimension requires an explicit
// Reset (drop + recreate), never an automatic migration.
const (
	FieldContent      = "content"
	FieldDocumentID   = "document_id"
	FieldUserID       = "user_id"
	FieldChunkIndex   = "chunk_index"
	FieldDocumentName = "document_name"
	FieldPageNumber   = "page_number"
	FieldVector       = "vector"
)

// Error taxonomy: callers need to tell a dead backend apart from a
// missing collection and from a request the backend rejected.
var (
	ErrNotConnected      = errors.New("vectorstore: backend not reachable")
	ErrCollectionMissing = errors.New("vectorstore: collection does not exist")
	ErrBadRequest        = errors.New("vectorstore: request rejected by backend")
)

// Record is one chunk plus its embedding, ready for insertion.
// PageNumber 0 means "no page".
type Record struct {
	Content      string
	DocumentID   string
	UserID       string
	ChunkIndex   int
	DocumentName string
	PageNumber   int
	Vector       []float32
}

// RetrievalResult is one ranked hit from a similarity search.
// Score is 1 - cosine distance, in [0, 1], higher is better.
type RetrievalResult struct {
	VectorID     string
	Content      string
	DocumentID   string
	DocumentName string
	ChunkIndex   int
	PageNumber   int
	Score        float64
	Distance     float64
}

// Store is a filtered approximate-nearest-neighbor index over chunk
// embeddings. Every read and write is scoped by user: the userID
// parameter on Search is mandatory by construction, there is no
// unscoped search.
type Store interface {
	// EnsureCollection creates the collection and its cosine index if
	// missing. Idempotent.
	EnsureCollection(ctx context.Context) error

	// Insert bulk-inserts records and returns assigned ids in input
	// order. All-or-nothing: a dimension mismatch anywhere fails the
	// whole batch before touching the backend.
	Insert(ctx context.Context, records []Record) ([]string, error)

	// Search returns at most limit results owned by userID, ranked by
	// descending similarity. A non-empty documentIDs set restricts the
	// search to those documents (OR across ids, AND with the tenant).
	Search(ctx context.Context, vector []float32, userID string, documentIDs []string, limit int) ([]RetrievalResult, error)

	// DeleteByDocument removes every record for the document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// HealthCheck reports whether the collection is reachable. Never
	// mutates state.
	HealthCheck(ctx context.Context) bool

	// Reset drops and recreates the collection. Explicit admin
	// operation for embedding dimension changes.
	Reset(ctx context.Context) error

	Close() error
}

// Config selects and parametrizes the backend once at startup.
type Config struct {
	Backend    string // "milvus", "qdrant" or "memory"
	Collection string
	Dimension  int
	Timeout    time.Duration

	MilvusURI   string
	MilvusToken string

	QdrantURL    string
	QdrantAPIKey string
}

// New builds the configured Store variant. Call sites never branch on
// the backend again after this point.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "milvus", "":
		return NewMilvusStore(cfg)
	case "qdrant":
		return NewQdrantStore(cfg), nil
	case "memory":
		return NewMemoryStore(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("vectorstore: unknown backend %q", cfg.Backend)
	}
}

// validateBatch rejects dimension mismatches before any wire call so a
// bad record cannot partially commit a batch.
func validateBatch(records []Record, dimension int) error {
	for i, r := range records {
		if len(r.Vector) != dimension {
			return fmt.Errorf("%w: record %d has dimension %d, collection expects %d",
				ErrBadRequest, i, len(r.Vector), dimension)
		}
		if r.UserID == "" {
			return fmt.Errorf("%w: record %d has no user scope", ErrBadRequest, i)
		}
	}
	return nil
}
