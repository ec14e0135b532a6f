package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/logger"
	"docquery-platform/internal/vectorstore"
	"docquery-platform/models"
)

// CronService runs background maintenance: failing documents stuck in
// processing, and probing vector store health.
type CronService struct {
	scheduler  *gocron.Scheduler
	documents  *mongo.Collection
	store      vectorstore.Store
	staleAfter time.Duration
}

func NewCronService(db *mongo.Database, store vectorstore.Store, staleAfter time.Duration) *CronService {
	if staleAfter == 0 {
		staleAfter = 30 * time.Minute
	}
	return &CronService{
		scheduler:  gocron.NewScheduler(time.UTC),
		documents:  db.Collection("documents"),
		store:      store,
		staleAfter: staleAfter,
	}
}

func (c *CronService) Start() {
	c.scheduler.Every(10).Minutes().Do(c.sweepStaleProcessing)
	c.scheduler.Every(5).Minutes().Do(c.probeVectorStore)
	c.scheduler.StartAsync()
	logger.Info("Maintenance scheduler started", "stale_after", c.staleAfter.String())
}

func (c *CronService) Stop() {
	c.scheduler.Stop()
}

// sweepStaleProcessing fails documents that have sat in "processing"
// past the deadline, usually after a worker crash. Failing them loudly
// lets users reprocess instead of waiting forever.
func (c *CronService) sweepStaleProcessing() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-c.staleAfter)
	res, err := c.documents.UpdateMany(ctx,
		bson.M{
			"status":     models.StatusProcessing,
			"updated_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": "processing timed out",
			"updated_at":    time.Now(),
		}},
	)
	if err != nil {
		logger.Error("Stale processing sweep failed", "error", err)
		return
	}
	if res.ModifiedCount > 0 {
		logger.Warn("Failed stale processing documents", "count", res.ModifiedCount)
	}
}

func (c *CronService) probeVectorStore() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if !c.store.HealthCheck(ctx) {
		logger.Error("Vector store health probe failed")
	}
}
