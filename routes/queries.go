package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/logger"
	"docquery-platform/internal/query"
	"docquery-platform/middleware"
	"docquery-platform/models"
	"docquery-platform/services"
	"docquery-platform/utils"
)

func SetupQueryRoutes(router *gin.Engine, queries *query.Service, settings *services.SettingsService, authMW *middleware.AuthMiddleware) {
	group := router.Group("/queries", authMW.RequireAuth())

	group.POST("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx := c.Request.Context()
		userSettings, err := settings.Get(ctx, userID)
		if err != nil {
			logger.Warn("Settings lookup failed, using defaults", "error", err)
			userSettings = models.DefaultUserSettings(userID)
		}

		result, err := queries.Process(ctx, userID, req, userSettings)
		if err != nil {
			logger.Error("Query failed", "error", err)
			utils.RespondError(c, http.StatusBadGateway, "query processing failed")
			return
		}
		c.JSON(http.StatusOK, result)
	})

	group.GET("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

		history, err := queries.History(c.Request.Context(), userID, page, pageSize)
		if err != nil {
			logger.Error("Query history failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, history)
	})

	group.GET("/:id", func(c *gin.Context) {
		userID, queryID, ok := pathIDs(c)
		if !ok {
			return
		}
		q, err := queries.Get(c.Request.Context(), userID, queryID)
		if err != nil {
			utils.RespondNotFound(c, "query")
			return
		}
		c.JSON(http.StatusOK, q)
	})

	group.POST("/:id/rate", func(c *gin.Context) {
		userID, queryID, ok := pathIDs(c)
		if !ok {
			return
		}

		var req struct {
			Rating   int    `json:"rating" binding:"required,min=1,max=5"`
			Feedback string `json:"feedback"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		err := queries.Rate(c.Request.Context(), userID, queryID, req.Rating, req.Feedback)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondNotFound(c, "query")
				return
			}
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "rating recorded"})
	})
}
