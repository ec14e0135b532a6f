package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func makeWords(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunkEmpty(t *testing.T) {
	c := New(200, 30, 20)
	if got := c.Chunk(""); got != nil {
		t.Errorf("empty input must yield no chunks, got %d", len(got))
	}
	if got := c.Chunk("   \n\n\t "); got != nil {
		t.Errorf("whitespace input must yield no chunks, got %d", len(got))
	}
}

func TestChunkShortDocument(t *testing.T) {
	c := New(200, 30, 20)
	chunks := c.Chunk("just five little words here")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "just five little words here" {
		t.Errorf("short document must survive intact, got %q", chunks[0].Content)
	}
	if chunks[0].ChunkIndex != 0 {
		t.Errorf("got index %d", chunks[0].ChunkIndex)
	}
}

func TestChunkWindowsAndOverlap(t *testing.T) {
	c := New(50, 10, 5)
	text := makeWords(120)

	chunks := c.Chunk(text)
	// Windows start at 0, 40, 80: [0,50), [40,90), [80,120).
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
	}

	first := strings.Fields(chunks[0].Content)
	second := strings.Fields(chunks[1].Content)
	if len(first) != 50 {
		t.Errorf("first window has %d words", len(first))
	}
	// The last 10 words of one window open the next.
	if !reflect.DeepEqual(first[40:], second[:10]) {
		t.Errorf("overlap broken: %v vs %v", first[40:], second[:10])
	}
	if second[0] != "w40" {
		t.Errorf("second window must start at w40, got %s", second[0])
	}
}

func TestChunkKeepsTail(t *testing.T) {
	// 85 words with step 40: windows [0,50), [40,85). The trailing window
	// has 45 words and is final, so it is kept.
	c := New(50, 10, 5)
	chunks := c.Chunk(makeWords(85))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	last := strings.Fields(chunks[len(chunks)-1].Content)
	if last[len(last)-1] != "w84" {
		t.Errorf("final word lost, tail ends with %s", last[len(last)-1])
	}
}

func TestChunkKeepsShortFinalWindow(t *testing.T) {
	// 42 words, window 40, overlap 10, min 20: second window [30,42) has
	// 12 words, below the minimum, but it is final so it must be kept.
	c := New(40, 10, 20)
	chunks := c.Chunk(makeWords(42))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	last := strings.Fields(chunks[1].Content)
	if len(last) != 12 {
		t.Errorf("final window has %d words", len(last))
	}
	if last[len(last)-1] != "w41" {
		t.Errorf("tail lost, ends with %s", last[len(last)-1])
	}
}

func TestChunkCoversEveryWord(t *testing.T) {
	c := New(50, 10, 5)
	text := makeWords(137)

	seen := map[string]bool{}
	for _, ch := range c.Chunk(text) {
		for _, w := range strings.Fields(ch.Content) {
			seen[w] = true
		}
	}
	for _, w := range strings.Fields(text) {
		if !seen[w] {
			t.Fatalf("word %s missing from every chunk", w)
		}
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := New(50, 10, 5)
	text := makeWords(300)
	a := c.Chunk(text)
	b := c.Chunk(text)
	if !reflect.DeepEqual(a, b) {
		t.Error("chunking must be deterministic")
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(0, -1, 0)
	if c.chunkSize != DefaultChunkSizeWords || c.overlap != DefaultChunkOverlapWords || c.minChunk != DefaultMinChunkWords {
		t.Errorf("defaults not applied: %+v", c)
	}

	// Overlap >= window would loop forever; it must be rejected.
	c = New(50, 50, 5)
	if c.overlap >= c.chunkSize {
		t.Errorf("invalid overlap accepted: %d >= %d", c.overlap, c.chunkSize)
	}
}

func TestCleanText(t *testing.T) {
	in := "a\t\tb   c\r\n\n\n\n\nd  "
	got := CleanText(in)
	if strings.Contains(got, "\t") || strings.Contains(got, "  ") {
		t.Errorf("horizontal whitespace not collapsed: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("newline runs not collapsed: %q", got)
	}
	if strings.HasSuffix(got, " ") {
		t.Errorf("trailing whitespace kept: %q", got)
	}
}

func TestCleanTextCollapsesPaddedNewlines(t *testing.T) {
	// Extracted text often pads blank lines with spaces; those runs
	// must collapse the same as bare newlines.
	if got := CleanText("a\n \n \nb"); got != "a\n\nb" {
		t.Errorf("padded newline run: got %q, want %q", got, "a\n\nb")
	}
	if got := CleanText("a \t\n\t \n  \n\t\nb"); got != "a\n\nb" {
		t.Errorf("mixed padded run: got %q, want %q", got, "a\n\nb")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("got %d", got)
	}
}
