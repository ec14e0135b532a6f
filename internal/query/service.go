package query

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"docquery-platform/internal/embeddings"
	"docquery-platform/internal/llm"
	"docquery-platform/internal/logger"
	"docquery-platform/internal/vectorstore"
	"docquery-platform/models"
)

var tracer = otel.Tracer("docquery/query")

// Service orchestrates question answering: embed the query, retrieve
// scoped evidence, score confidence, generate a grounded answer and
// persist the exchange for history and feedback.
type Service struct {
	store       vectorstore.Store
	embedder    embeddings.Embedder
	generator   *llm.Generator
	queries     *mongo.Collection
	searchLimit int
	confidence  ConfidencePolicy
}

func NewService(store vectorstore.Store, embedder embeddings.Embedder, generator *llm.Generator, db *mongo.Database, searchLimit int) *Service {
	if searchLimit <= 0 {
		searchLimit = 3
	}
	return &Service{
		store:       store,
		embedder:    embedder,
		generator:   generator,
		queries:     db.Collection("queries"),
		searchLimit: searchLimit,
	}
}

// Retrieve embeds the question and searches the user's chunks. Returns
// the evidence as source chunks plus an aggregate confidence score.
// Empty retrieval is not an error: ([], 0.0, nil).
func (s *Service) Retrieve(ctx context.Context, userID, question string, documentIDs []string) ([]models.SourceChunk, float64, error) {
	ctx, span := tracer.Start(ctx, "query.retrieve")
	defer span.End()

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, 0, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.Search(ctx, vector, userID, documentIDs, s.searchLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("vector search: %w", err)
	}
	span.SetAttributes(attribute.Int("query.hits", len(hits)))

	sources := make([]models.SourceChunk, 0, len(hits))
	scores := make([]float64, 0, len(hits))
	for _, h := range hits {
		var page *int
		if h.PageNumber > 0 {
			p := h.PageNumber
			page = &p
		}
		sources = append(sources, models.SourceChunk{
			DocumentID:     h.DocumentID,
			DocumentName:   h.DocumentName,
			ChunkID:        h.ChunkIndex,
			Content:        h.Content,
			RelevanceScore: h.Score,
			Page:           page,
		})
		scores = append(scores, h.Score)
	}

	return sources, s.confidence.Score(scores), nil
}

// Process answers one question end to end and records the exchange.
// Generation failures degrade inside the generator; only retrieval or
// persistence failures surface as errors.
func (s *Service) Process(ctx context.Context, userID primitive.ObjectID, req models.QueryRequest, settings *models.UserSettings) (*models.Query, error) {
	ctx, span := tracer.Start(ctx, "query.process")
	defer span.End()

	start := time.Now()

	sources, confidence, err := s.Retrieve(ctx, userID.Hex(), req.QueryText, req.DocumentIDs)
	if err != nil {
		return nil, err
	}
	searchTime := time.Since(start)

	var answer string
	genStart := time.Now()
	if len(sources) == 0 {
		// Nothing to ground on: refuse without burning a generation call.
		answer = llm.RefusalMessage
	} else {
		result := s.generator.Answer(ctx, req.QueryText, sources, nil, settings)
		answer = result.Answer
		if result.Fallback {
			span.SetAttributes(attribute.Bool("query.fallback", true))
		}
	}
	genTime := time.Since(genStart)

	q := &models.Query{
		UserID:           userID,
		QueryText:        req.QueryText,
		ResponseText:     answer,
		Sources:          sources,
		ConfidenceScore:  confidence,
		SearchTimeMs:     searchTime.Milliseconds(),
		GenerationTimeMs: genTime.Milliseconds(),
		TotalTimeMs:      time.Since(start).Milliseconds(),
		CreatedAt:        time.Now(),
	}

	res, err := s.queries.InsertOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("persist query: %w", err)
	}
	q.ID = res.InsertedID.(primitive.ObjectID)

	logger.Info("Query processed",
		"user_id", userID.Hex(),
		"sources", len(sources),
		"confidence", confidence,
		"total_ms", q.TotalTimeMs)
	return q, nil
}

// Rate attaches a 1-5 rating and optional feedback to a past query.
// Scoped to the owner; rating someone else's query is a not-found.
func (s *Service) Rate(ctx context.Context, userID, queryID primitive.ObjectID, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}

	update := bson.M{"rating": rating}
	if feedback != "" {
		update["feedback"] = feedback
	}
	res, err := s.queries.UpdateOne(ctx,
		bson.M{"_id": queryID, "user_id": userID},
		bson.M{"$set": update},
	)
	if err != nil {
		return fmt.Errorf("rate query: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// History returns the user's past queries, newest first.
func (s *Service) History(ctx context.Context, userID primitive.ObjectID, page, pageSize int) (*models.QueryHistoryResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := bson.M{"user_id": userID}
	total, err := s.queries.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count queries: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := s.queries.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer cursor.Close(ctx)

	queries := []models.Query{}
	if err := cursor.All(ctx, &queries); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	return &models.QueryHistoryResponse{
		Queries:    queries,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Get fetches one query scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, queryID primitive.ObjectID) (*models.Query, error) {
	var q models.Query
	err := s.queries.FindOne(ctx, bson.M{"_id": queryID, "user_id": userID}).Decode(&q)
	if err != nil {
		return nil, err
	}
	return &q, nil
}
