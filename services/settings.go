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
	"docquery-platform/models"
)

// SettingsService stores per-user LLM preferences. Reads always
// succeed: missing settings resolve to the defaults.
type SettingsService struct {
	settings *mongo.Collection
}

func NewSettingsService(db *mongo.Database) *SettingsService {
	return &SettingsService{settings: db.Collection("user_settings")}
}

// Get returns the user's settings, or defaults when none are stored.
func (s *SettingsService) Get(ctx context.Context, userID primitive.ObjectID) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := s.settings.FindOne(ctx, bson.M{"user_id": userID}).Decode(&settings)
	if err == mongo.ErrNoDocuments {
		return models.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update applies a partial settings change and returns the result.
func (s *SettingsService) Update(ctx context.Context, userID primitive.ObjectID, req models.SettingsUpdateRequest) (*models.UserSettings, error) {
	set := bson.M{"updated_at": time.Now()}

	if req.LLMProvider != nil {
		if !llm.KnownProvider(*req.LLMProvider) {
			return nil, fmt.Errorf("unknown provider: %s", *req.LLMProvider)
		}
		set["llm_provider"] = *req.LLMProvider
	}
	if req.LLMModel != nil {
		set["llm_model"] = *req.LLMModel
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 2 {
			return nil, fmt.Errorf("temperature must be between 0 and 2")
		}
		set["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens < 1 || *req.MaxTokens > 32768 {
			return nil, fmt.Errorf("max_tokens must be between 1 and 32768")
		}
		set["max_tokens"] = *req.MaxTokens
	}
	if req.OpenAIAPIKey != nil {
		set["openai_api_key"] = *req.OpenAIAPIKey
	}
	if req.AnthropicAPIKey != nil {
		set["anthropic_api_key"] = *req.AnthropicAPIKey
	}
	if req.GeminiAPIKey != nil {
		set["gemini_api_key"] = *req.GeminiAPIKey
	}

	defaults := models.DefaultUserSettings(userID)
	_, err := s.settings.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": set,
			"$setOnInsert": bson.M{
				"user_id":    userID,
				"created_at": time.Now(),
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	stored, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	// Fill gaps with defaults for fields never set.
	if stored.LLMProvider == "" {
		stored.LLMProvider = defaults.LLMProvider
	}
	if stored.LLMModel == "" {
		stored.LLMModel = defaults.LLMModel
	}
	return stored, nil
}
