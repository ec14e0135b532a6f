package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SourceChunk is one cited piece of evidence attached to an answer.
// Content is kept in full so the chat UI and exports can show complete
// evidence, not a preview.
type SourceChunk struct {
	DocumentID     string  `bson:"document_id" json:"document_id"`
	DocumentName   string  `bson:"document_name" json:"document_name"`
	ChunkID        int     `bson:"chunk_id" json:"chunk_id"`
	Content        string  `bson:"content" json:"content"`
	RelevanceScore float64 `bson:"relevance_score" json:"relevance_score"`
	Page           *int    `bson:"page,omitempty" json:"page,omitempty"`
}

// Query is one question-answer exchange. Immutable after creation except
// for the rating/feedback fields.
type Query struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"user_id" json:"user_id"`
	QueryText        string             `bson:"query_text" json:"query_text"`
	ResponseText     string             `bson:"response_text" json:"response_text"`
	Sources          []SourceChunk      `bson:"sources" json:"sources"`
	ConfidenceScore  float64            `bson:"confidence_score" json:"confidence_score"`
	SearchTimeMs     int64              `bson:"search_time_ms" json:"search_time_ms"`
	GenerationTimeMs int64              `bson:"generation_time_ms" json:"generation_time_ms"`
	TotalTimeMs      int64              `bson:"total_time_ms" json:"total_time_ms"`
	Rating           *int               `bson:"rating,omitempty" json:"rating,omitempty"`
	Feedback         string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}

// QueryRequest is the payload for POST /queries
type QueryRequest struct {
	QueryText   string   `json:"query_text" binding:"required"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// QueryHistoryResponse is a paginated page of past queries
type QueryHistoryResponse struct {
	Queries    []Query `json:"queries"`
	Total      int64   `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	TotalPages int64   `json:"total_pages"`
}
