package embeddings

import "context"

// Embedder converts text into fixed-dimension vectors. Passage and query
// embeddings use different task framings (asymmetric dual encoder), so the
// two entry points must not be mixed up.
type Embedder interface {
	// EmbedPassages embeds a batch of document chunks in one call.
	// The result preserves input order and has exactly len(texts) vectors.
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension is the fixed output vector size.
	Dimension() int
}
