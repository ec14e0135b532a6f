package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/vectorstore"
)

func SetupHealthRoutes(router *gin.Engine, mongoClient *mongo.Client, rdb *redis.Client, store vectorstore.Store) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	// /ready checks the backing stores and reports each one.
	router.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}
		healthy := true

		if err := mongoClient.Ping(ctx, nil); err != nil {
			checks["mongodb"] = err.Error()
			healthy = false
		} else {
			checks["mongodb"] = "ok"
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		} else {
			checks["redis"] = "ok"
		}

		if store.HealthCheck(ctx) {
			checks["vector_store"] = "ok"
		} else {
			checks["vector_store"] = "unreachable"
			healthy = false
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
	})
}
