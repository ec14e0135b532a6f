package chunker

import (
	"regexp"
	"strings"
)

// Default chunking parameters: 200-word windows with 30-word overlap,
// trailing windows under 20 words dropped unless they end the document.
const (
	DefaultChunkSizeWords    = 200
	DefaultChunkOverlapWords = 30
	DefaultMinChunkWords     = 20
)

var (
	whitespaceRegex    = regexp.MustCompile(`[ \t\r\f\v]+`)
	paddedNewlineRegex = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	newlineRegex       = regexp.MustCompile(`\n{3,}`)
)

// Chunk is one bounded segment of a document's text, the unit of
// embedding and retrieval.
type Chunk struct {
	Content    string
	ChunkIndex int
	Page       *int // nil when the source has no pagination
}

// Chunker splits extracted text into overlapping word windows. The zero
// value is not usable; construct with New.
type Chunker struct {
	chunkSize int
	overlap   int
	minChunk  int
}

// New returns a Chunker with the given window, overlap and minimum sizes
// in words. Non-positive values fall back to the defaults.
func New(chunkSize, overlap, minChunk int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSizeWords
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlapWords
	}
	if minChunk <= 0 {
		minChunk = DefaultMinChunkWords
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		minChunk:  minChunk,
	}
}

// Chunk splits text into overlapping windows. Output is deterministic:
// the same input always yields the same chunks with the same indices.
func (c *Chunker) Chunk(text string) []Chunk {
	text = CleanText(text)
	if text == "" {
		return nil
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []Chunk
	step := c.chunkSize - c.overlap

	for start := 0; start < len(words); start += step {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		}

		chunkWords := words[start:end]
		isFinal := start+c.chunkSize >= len(words)

		// Short trailing windows are dropped unless they close out the
		// document; the last window is always kept so no tail is lost.
		if len(chunkWords) >= c.minChunk || isFinal {
			chunks = append(chunks, Chunk{
				Content:    strings.Join(chunkWords, " "),
				ChunkIndex: len(chunks),
			})
		}

		if isFinal {
			break
		}
	}

	return chunks
}

// CleanText normalizes whitespace: runs of spaces/tabs collapse to one
// space, 3+ consecutive newlines collapse to 2, ends are trimmed.
// Newlines padded with spaces or tabs count as consecutive, so extracted
// text like "\n \n \n" still collapses.
func CleanText(text string) string {
	text = whitespaceRegex.ReplaceAllString(text, " ")
	text = paddedNewlineRegex.ReplaceAllString(text, "\n")
	text = newlineRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// EstimateTokens gives a rough token count (~4 characters per token)
func EstimateTokens(text string) int {
	return len(text) / 4
}
