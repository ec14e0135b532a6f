package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSettings holds per-user LLM preferences. Provider/model/temperature
// are resolved per generation call; API keys are the user's own.
type UserSettings struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	LLMProvider     string             `bson:"llm_provider" json:"llm_provider"` // groq, openai, anthropic, gemini
	LLMModel        string             `bson:"llm_model" json:"llm_model"`
	Temperature     float64            `bson:"temperature" json:"temperature"`
	MaxTokens       int                `bson:"max_tokens" json:"max_tokens"`
	OpenAIAPIKey    string             `bson:"openai_api_key,omitempty" json:"-"`
	AnthropicAPIKey string             `bson:"anthropic_api_key,omitempty" json:"-"`
	GeminiAPIKey    string             `bson:"gemini_api_key,omitempty" json:"-"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// DefaultUserSettings returns the settings used before a user customizes anything
func DefaultUserSettings(userID primitive.ObjectID) *UserSettings {
	now := time.Now()
	return &UserSettings{
		UserID:      userID,
		LLMProvider: "groq",
		LLMModel:    "llama-3.3-70b-versatile",
		Temperature: 0.7,
		MaxTokens:   4096,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SettingsResponse is the client view of UserSettings. Stored API keys
// are never echoed back; only their presence is reported.
type SettingsResponse struct {
	UserSettings
	HasOpenAIKey    bool `json:"has_openai_key"`
	HasAnthropicKey bool `json:"has_anthropic_key"`
	HasGeminiKey    bool `json:"has_gemini_key"`
}

func (s *UserSettings) Redacted() SettingsResponse {
	return SettingsResponse{
		UserSettings:    *s,
		HasOpenAIKey:    s.OpenAIAPIKey != "",
		HasAnthropicKey: s.AnthropicAPIKey != "",
		HasGeminiKey:    s.GeminiAPIKey != "",
	}
}

// SettingsUpdateRequest is a partial settings update
type SettingsUpdateRequest struct {
	LLMProvider     *string  `json:"llm_provider"`
	LLMModel        *string  `json:"llm_model"`
	Temperature     *float64 `json:"temperature"`
	MaxTokens       *int     `json:"max_tokens"`
	OpenAIAPIKey    *string  `json:"openai_api_key"`
	AnthropicAPIKey *string  `json:"anthropic_api_key"`
	GeminiAPIKey    *string  `json:"gemini_api_key"`
}
