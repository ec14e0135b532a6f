package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"docquery-platform/internal/ingest"
	"docquery-platform/internal/logger"
)

const (
	TaskProcessDocument   = "document:process"
	TaskReprocessDocument = "document:reprocess"
)

type DocumentPayload struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
}

// NewProcessTask enqueues the full ingestion pipeline for a document.
// Used for uploads above the synchronous processing limit.
func NewProcessTask(documentID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentPayload{DocumentID: documentID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskProcessDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewReprocessTask(documentID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentPayload{DocumentID: documentID, UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(
		TaskReprocessDocument,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(15*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor runs queued ingestion work in the worker process.
type TaskProcessor struct {
	coordinator *ingest.Coordinator
}

func NewTaskProcessor(coordinator *ingest.Coordinator) *TaskProcessor {
	return &TaskProcessor{coordinator: coordinator}
}

func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	id, err := decodeDocumentID(t)
	if err != nil {
		return err
	}
	logger.Info("Worker processing document", "document_id", id.Hex())
	return p.coordinator.Process(ctx, id)
}

func (p *TaskProcessor) ReprocessDocument(ctx context.Context, t *asynq.Task) error {
	id, err := decodeDocumentID(t)
	if err != nil {
		return err
	}
	logger.Info("Worker reprocessing document", "document_id", id.Hex())
	return p.coordinator.Reprocess(ctx, id)
}

func decodeDocumentID(t *asynq.Task) (primitive.ObjectID, error) {
	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// A payload that never unmarshals will never succeed.
		return primitive.NilObjectID, fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	id, err := primitive.ObjectIDFromHex(payload.DocumentID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("bad document id %q: %w", payload.DocumentID, asynq.SkipRetry)
	}
	return id, nil
}
