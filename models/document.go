package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document source types
const (
	SourceUpload  = "upload"
	SourceText    = "text"
	SourceURL     = "url"
	SourceYouTube = "youtube"
)

// Document represents an uploaded document and its processing state
type Document struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"user_id" json:"user_id"`
	Filename         string             `bson:"filename" json:"filename"`
	OriginalFilename string             `bson:"original_filename" json:"original_filename"`
	FilePath         string             `bson:"file_path" json:"file_path"`
	FileType         string             `bson:"file_type" json:"file_type"`
	FileSize         int64              `bson:"file_size" json:"file_size"`
	SourceType       string             `bson:"source_type" json:"source_type"`
	SourceURL        string             `bson:"source_url,omitempty" json:"source_url,omitempty"`
	Title            string             `bson:"title,omitempty" json:"title,omitempty"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	ContentHash      string             `bson:"content_hash" json:"content_hash"` // SHA-256, for dedup
	Status           string             `bson:"status" json:"status"`
	ErrorMessage     string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	ChunkCount       int                `bson:"chunk_count" json:"chunk_count"`

	// AI-generated summaries, filled in best-effort after processing
	SummaryBrief       string       `bson:"summary_brief,omitempty" json:"summary_brief,omitempty"`
	SummaryDetailed    string       `bson:"summary_detailed,omitempty" json:"summary_detailed,omitempty"`
	KeyPoints          []string     `bson:"key_points,omitempty" json:"key_points,omitempty"`
	ActionItems        []ActionItem `bson:"action_items,omitempty" json:"action_items,omitempty"`
	WordCount          int          `bson:"word_count,omitempty" json:"word_count,omitempty"`
	ReadingTimeMinutes int          `bson:"reading_time_minutes,omitempty" json:"reading_time_minutes,omitempty"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// DocumentChunk is one persisted chunk row. The same chunk also lives in
// the vector index; VectorID links the two.
type DocumentChunk struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID  primitive.ObjectID `bson:"document_id" json:"document_id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	ChunkIndex  int                `bson:"chunk_index" json:"chunk_index"`
	Content     string             `bson:"content" json:"content"`
	Compressed  bool               `bson:"compressed,omitempty" json:"-"`
	Compression string             `bson:"compression,omitempty" json:"-"`
	StartPage   *int               `bson:"start_page,omitempty" json:"start_page,omitempty"`
	EndPage     *int               `bson:"end_page,omitempty" json:"end_page,omitempty"`
	VectorID    string             `bson:"vector_id,omitempty" json:"vector_id,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// ActionItem is one task, decision or commitment the LLM extracted
// from a document
type ActionItem struct {
	Task     string  `bson:"task" json:"task"`
	Priority string  `bson:"priority" json:"priority"` // high, medium, low
	Deadline *string `bson:"deadline,omitempty" json:"deadline,omitempty"`
	Category string  `bson:"category" json:"category"` // task, decision, commitment, follow-up
}

// UploadResponse is returned after a successful document upload
type UploadResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Message    string `json:"message"`
	TaskID     string `json:"task_id,omitempty"` // set when processing was queued
}
