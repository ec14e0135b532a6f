package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatSession groups a conversation over an optional document scope
type ChatSession struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	DocumentIDs   []string           `bson:"document_ids" json:"document_ids"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	MessageCount  int                `bson:"message_count" json:"message_count"`
	LastMessageAt *time.Time         `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// ChatMessage is one turn in a session. Assistant turns carry the evidence
// sources and generation metadata.
type ChatMessage struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID        primitive.ObjectID `bson:"session_id" json:"session_id"`
	Role             string             `bson:"role" json:"role"` // "user" or "assistant"
	Content          string             `bson:"content" json:"content"`
	Sources          []SourceChunk      `bson:"sources,omitempty" json:"sources,omitempty"`
	ModelUsed        string             `bson:"model_used,omitempty" json:"model_used,omitempty"`
	GenerationTimeMs int64              `bson:"generation_time_ms,omitempty" json:"generation_time_ms,omitempty"`
	Feedback         string             `bson:"feedback,omitempty" json:"feedback,omitempty"` // "up" or "down"
	FeedbackText     string             `bson:"feedback_text,omitempty" json:"feedback_text,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}

// ChatTurn is the (role, content) pair fed to generation as history
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSessionRequest creates or updates a session
type ChatSessionRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DocumentIDs []string `json:"document_ids"`
}

// ChatMessageRequest is a user turn posted to a session
type ChatMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageFeedback is thumbs up/down plus optional free text
type MessageFeedback struct {
	Feedback     string `json:"feedback" binding:"required,oneof=up down"`
	FeedbackText string `json:"feedback_text"`
}
