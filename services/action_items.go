package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/ingest"
	"docquery-platform/internal/llm"
	"docquery-platform/internal/logger"
	"docquery-platform/models"
)

// Extraction reads at most this many leading chunks, capped in size, to
// stay inside provider context windows.
const (
	actionItemMaxChunks = 25
	actionItemMaxChars  = 12000
)

const actionItemSystem = `You extract action items from documents: tasks, to-dos, deadlines, commitments and decision points.

For each item provide the task description, a priority (high/medium/low based on the urgency mentioned), a deadline if any date or timeline is mentioned, and a category (task/decision/commitment/follow-up).

Respond with a JSON array only, no other text. Example:
[
  {"task": "Review quarterly report", "priority": "high", "deadline": "Dec 15", "category": "task"},
  {"task": "Schedule meeting with team", "priority": "medium", "deadline": null, "category": "follow-up"}
]

If no action items are found, return an empty array: []`

// ActionItemService extracts action items from a processed document and
// stores them on the document row.
type ActionItemService struct {
	generator   *llm.Generator
	documents   *mongo.Collection
	coordinator *ingest.Coordinator
}

func NewActionItemService(generator *llm.Generator, db *mongo.Database, coordinator *ingest.Coordinator) *ActionItemService {
	return &ActionItemService{
		generator:   generator,
		documents:   db.Collection("documents"),
		coordinator: coordinator,
	}
}

// Extract pulls action items out of a document's chunks, stores them on
// the document and returns them. An empty result is valid: not every
// document contains tasks.
func (s *ActionItemService) Extract(ctx context.Context, userID, documentID primitive.ObjectID) ([]models.ActionItem, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": documentID, "user_id": userID}).Decode(&doc)
	if err != nil {
		return nil, err
	}

	chunks, err := s.coordinator.Chunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document has no processed content")
	}

	if len(chunks) > actionItemMaxChunks {
		chunks = chunks[:actionItemMaxChunks]
	}
	var b strings.Builder
	for _, ch := range chunks {
		b.WriteString(ch.Content)
		b.WriteString("\n\n")
	}
	text := b.String()
	if len(text) > actionItemMaxChars {
		text = text[:actionItemMaxChars] + "..."
	}

	response, err := s.generator.Complete(ctx, actionItemSystem, "Document content:\n\n"+text, nil)
	if err != nil {
		return nil, fmt.Errorf("extraction call: %w", err)
	}

	items := parseActionItems(response)

	_, err = s.documents.UpdateByID(ctx, documentID, bson.M{"$set": bson.M{
		"action_items": items,
		"updated_at":   time.Now(),
	}})
	if err != nil {
		return nil, fmt.Errorf("store action items: %w", err)
	}

	logger.Info("Action items extracted", "document_id", documentID.Hex(), "count", len(items))
	return items, nil
}

// parseActionItems finds the JSON array in the response and keeps only
// well-formed items. Malformed output yields an empty list, never an
// error: extraction is advisory.
func parseActionItems(response string) []models.ActionItem {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end <= start {
		return []models.ActionItem{}
	}

	var raw []models.ActionItem
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		logger.Warn("Action item response did not parse", "error", err)
		return []models.ActionItem{}
	}

	items := make([]models.ActionItem, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item.Task) == "" {
			continue
		}
		if item.Priority == "" {
			item.Priority = "medium"
		}
		if item.Category == "" {
			item.Category = "task"
		}
		items = append(items, item)
	}
	return items
}
