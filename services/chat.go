package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"docquery-platform/internal/llm"
	"docquery-platform/internal/logger"
	"docquery-platform/internal/query"
	"docquery-platform/models"
)

// History turns fetched per message; the prompt layer keeps the newest
// five of these.
const chatHistoryFetch = 10

// Session titles auto-derived from the first message are capped here.
const autoTitleMaxChars = 50

// ChatService manages sessions and grounded conversational answers.
// Sessions scope retrieval to their document set when one is attached.
type ChatService struct {
	sessions  *mongo.Collection
	messages  *mongo.Collection
	retriever *query.Service
	generator *llm.Generator
}

func NewChatService(db *mongo.Database, retriever *query.Service, generator *llm.Generator) *ChatService {
	return &ChatService{
		sessions:  db.Collection("chat_sessions"),
		messages:  db.Collection("chat_messages"),
		retriever: retriever,
		generator: generator,
	}
}

// CreateSession opens a new conversation, optionally scoped to a set
// of the user's documents.
func (s *ChatService) CreateSession(ctx context.Context, userID primitive.ObjectID, req models.ChatSessionRequest) (*models.ChatSession, error) {
	now := time.Now()
	session := &models.ChatSession{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		DocumentIDs: req.DocumentIDs,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if session.Title == "" {
		session.Title = "New conversation"
	}
	if session.DocumentIDs == nil {
		session.DocumentIDs = []string{}
	}

	res, err := s.sessions.InsertOne(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	session.ID = res.InsertedID.(primitive.ObjectID)
	return session, nil
}

// ListSessions returns the user's active sessions, most recently used
// first.
func (s *ChatService) ListSessions(ctx context.Context, userID primitive.ObjectID) ([]models.ChatSession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := s.sessions.Find(ctx, bson.M{"user_id": userID, "is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []models.ChatSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession fetches one active session scoped to its owner.
func (s *ChatService) GetSession(ctx context.Context, userID, sessionID primitive.ObjectID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.sessions.FindOne(ctx, bson.M{
		"_id":       sessionID,
		"user_id":   userID,
		"is_active": true,
	}).Decode(&session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateSession renames a session or changes its document scope.
func (s *ChatService) UpdateSession(ctx context.Context, userID, sessionID primitive.ObjectID, req models.ChatSessionRequest) (*models.ChatSession, error) {
	set := bson.M{"updated_at": time.Now()}
	if req.Title != "" {
		set["title"] = req.Title
	}
	if req.Description != "" {
		set["description"] = req.Description
	}
	if req.DocumentIDs != nil {
		set["document_ids"] = req.DocumentIDs
	}

	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "user_id": userID, "is_active": true},
		bson.M{"$set": set})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return s.GetSession(ctx, userID, sessionID)
}

// DeleteSession soft-deletes: the session disappears from listings but
// its messages stay for audit.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID primitive.ObjectID) error {
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "user_id": userID, "is_active": true},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Messages returns a session's messages in chronological order.
func (s *ChatService) Messages(ctx context.Context, userID, sessionID primitive.ObjectID) ([]models.ChatMessage, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage runs one conversational turn: store the user message,
// retrieve evidence within the session's document scope, generate a
// grounded answer with recent history, store and return it.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID primitive.ObjectID, content string) (*models.ChatMessage, error) {
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	history, err := s.recentHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	userMsg := models.ChatMessage{
		SessionID: sessionID,
		Role:      "user",
		Content:   content,
		CreatedAt: now,
	}
	if _, err := s.messages.InsertOne(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	sources, confidence, err := s.retriever.Retrieve(ctx, userID.Hex(), content, session.DocumentIDs)
	if err != nil {
		return nil, err
	}

	genStart := time.Now()
	var answer string
	var modelUsed string
	if len(sources) == 0 {
		answer = llm.RefusalMessage
		modelUsed = "none"
	} else {
		result := s.generator.Answer(ctx, content, sources, history, nil)
		answer = result.Answer
		modelUsed = result.ModelUsed
	}

	assistantMsg := &models.ChatMessage{
		SessionID:        sessionID,
		Role:             "assistant",
		Content:          answer,
		Sources:          sources,
		ModelUsed:        modelUsed,
		GenerationTimeMs: time.Since(genStart).Milliseconds(),
		CreatedAt:        time.Now(),
	}
	res, err := s.messages.InsertOne(ctx, assistantMsg)
	if err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	assistantMsg.ID = res.InsertedID.(primitive.ObjectID)

	s.touchSession(ctx, session, content)

	logger.Info("Chat turn completed",
		"session_id", sessionID.Hex(),
		"sources", len(sources),
		"confidence", confidence,
		"model", modelUsed)
	return assistantMsg, nil
}

// RateMessage records thumbs up/down feedback on an assistant message.
func (s *ChatService) RateMessage(ctx context.Context, userID, sessionID, messageID primitive.ObjectID, fb models.MessageFeedback) error {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}

	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "session_id": sessionID, "role": "assistant"},
		bson.M{"$set": bson.M{"feedback": fb.Feedback, "feedback_text": fb.FeedbackText}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *ChatService) recentHistory(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatTurn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(chatHistoryFetch)
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recent []models.ChatMessage
	if err := cursor.All(ctx, &recent); err != nil {
		return nil, err
	}

	// Reverse back into chronological order.
	turns := make([]models.ChatTurn, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		turns = append(turns, models.ChatTurn{Role: recent[i].Role, Content: recent[i].Content})
	}
	return turns, nil
}

// touchSession bumps counters and derives a title from the first
// message of untitled sessions.
func (s *ChatService) touchSession(ctx context.Context, session *models.ChatSession, firstMessage string) {
	now := time.Now()
	set := bson.M{
		"updated_at":      now,
		"last_message_at": now,
	}
	if session.MessageCount == 0 && (session.Title == "" || session.Title == "New conversation") {
		set["title"] = autoTitle(firstMessage)
	}

	_, err := s.sessions.UpdateByID(ctx, session.ID, bson.M{
		"$set": set,
		"$inc": bson.M{"message_count": 2},
	})
	if err != nil {
		logger.Warn("Could not update session metadata", "session_id", session.ID.Hex(), "error", err)
	}
}

func autoTitle(message string) string {
	if len(message) <= autoTitleMaxChars {
		return message
	}
	return message[:autoTitleMaxChars-3] + "..."
}
