package services

import (
	"testing"
)

func TestParseSummaryResponse(t *testing.T) {
	response := `BRIEF: A short overview of rivers.
DETAILED: The document describes the major rivers of Africa,
their lengths and basins.
KEY POINTS:
- The Nile is the longest river
- The Congo has the largest basin
- Several rivers cross national borders`

	got := parseSummaryResponse(response)
	if got.Brief != "A short overview of rivers." {
		t.Errorf("brief: %q", got.Brief)
	}
	if got.Detailed != "The document describes the major rivers of Africa, their lengths and basins." {
		t.Errorf("detailed: %q", got.Detailed)
	}
	if len(got.KeyPoints) != 3 {
		t.Fatalf("expected 3 key points, got %d", len(got.KeyPoints))
	}
	if got.KeyPoints[0] != "The Nile is the longest river" {
		t.Errorf("first point: %q", got.KeyPoints[0])
	}
}

func TestParseSummaryResponseDrift(t *testing.T) {
	got := parseSummaryResponse("Some freeform answer without sections")
	if got.Brief != "" || got.Detailed != "" || len(got.KeyPoints) != 0 {
		t.Errorf("unstructured response must parse to empty result, got %+v", got)
	}

	got = parseSummaryResponse("BRIEF: only a brief")
	if got.Brief != "only a brief" {
		t.Errorf("got %q", got.Brief)
	}
	if got.Detailed != "" {
		t.Errorf("missing section must stay empty, got %q", got.Detailed)
	}
}
