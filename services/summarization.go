package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/chunker"
	"docquery-platform/internal/llm"
	"docquery-platform/models"
)

// Summaries skip the LLM below this size; the text is its own summary.
const summarizeMinTokens = 500

// Truncate very long documents before summarization to stay inside
// provider context windows.
const summarizeMaxChars = 48000

const summarySystem = `You summarize documents. Respond in exactly this format:

BRIEF: <one or two sentence summary>
DETAILED: <one paragraph summary>
KEY POINTS:
- <point>
- <point>
- <point>`

// SummarizationResult is the parsed outcome of one summarization call.
type SummarizationResult struct {
	Brief     string
	Detailed  string
	KeyPoints []string
}

// SummarizationService produces document summaries after ingestion.
// It is best-effort by contract: callers log failures and move on.
type SummarizationService struct {
	generator *llm.Generator
	documents *mongo.Collection
}

func NewSummarizationService(generator *llm.Generator, db *mongo.Database) *SummarizationService {
	return &SummarizationService{
		generator: generator,
		documents: db.Collection("documents"),
	}
}

// Summarize generates summaries for a processed document and stores
// them on the document row. Implements the ingestion post-hook.
func (s *SummarizationService) Summarize(ctx context.Context, doc *models.Document, text string) error {
	result, err := s.SummarizeText(ctx, text)
	if err != nil {
		return err
	}

	_, err = s.documents.UpdateByID(ctx, doc.ID, bson.M{"$set": bson.M{
		"summary_brief":    result.Brief,
		"summary_detailed": result.Detailed,
		"key_points":       result.KeyPoints,
		"updated_at":       time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("store summaries: %w", err)
	}
	return nil
}

// SummarizeText summarizes raw text. Short texts come back verbatim
// without an LLM call.
func (s *SummarizationService) SummarizeText(ctx context.Context, text string) (*SummarizationResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to summarize")
	}

	if chunker.EstimateTokens(text) < summarizeMinTokens {
		brief := text
		if len(brief) > 300 {
			brief = brief[:300] + "..."
		}
		return &SummarizationResult{Brief: brief, Detailed: text}, nil
	}

	if len(text) > summarizeMaxChars {
		text = text[:summarizeMaxChars]
	}

	response, err := s.generator.Complete(ctx, summarySystem, "Summarize this document:\n\n"+text, nil)
	if err != nil {
		return nil, fmt.Errorf("summarization call: %w", err)
	}

	result := parseSummaryResponse(response)
	if result.Brief == "" && result.Detailed == "" {
		return nil, fmt.Errorf("summary response had no usable content")
	}
	return result, nil
}

// parseSummaryResponse tolerates minor format drift: missing sections
// leave their fields empty rather than failing.
func parseSummaryResponse(response string) *SummarizationResult {
	result := &SummarizationResult{}
	section := ""

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "BRIEF:"):
			result.Brief = strings.TrimSpace(strings.TrimPrefix(trimmed, "BRIEF:"))
			section = "brief"
		case strings.HasPrefix(trimmed, "DETAILED:"):
			result.Detailed = strings.TrimSpace(strings.TrimPrefix(trimmed, "DETAILED:"))
			section = "detailed"
		case strings.HasPrefix(trimmed, "KEY POINTS:"):
			section = "points"
		case strings.HasPrefix(trimmed, "-") && section == "points":
			point := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
			if point != "" {
				result.KeyPoints = append(result.KeyPoints, point)
			}
		case trimmed != "":
			switch section {
			case "brief":
				result.Brief += " " + trimmed
			case "detailed":
				result.Detailed += " " + trimmed
			}
		}
	}
	return result
}
