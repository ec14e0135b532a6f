package llm

import (
	"fmt"
	"strings"

	"docquery-platform/models"
)

const (
	fallbackMaxSources    = 3
	fallbackSnippetChars  = 500
	fallbackIntroSentence = "I couldn't generate an answer right now, but here are the most relevant passages from your documents:"
)

// FallbackAnswer renders retrieved evidence directly when every
// generation attempt failed. Deterministic for a given source list.
func FallbackAnswer(sources []models.SourceChunk) string {
	if len(sources) == 0 {
		return RefusalMessage
	}
	if len(sources) > fallbackMaxSources {
		sources = sources[:fallbackMaxSources]
	}

	var b strings.Builder
	b.WriteString(fallbackIntroSentence)
	for i, src := range sources {
		snippet := src.Content
		if len(snippet) > fallbackSnippetChars {
			snippet = snippet[:fallbackSnippetChars] + "..."
		}
		b.WriteString(fmt.Sprintf("\n\n%d. From %s:\n%s", i+1, src.DocumentName, snippet))
	}
	return b.String()
}
