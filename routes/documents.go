package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/logger"
	"docquery-platform/middleware"
	"docquery-platform/models"
	"docquery-platform/services"
	"docquery-platform/utils"
)

func SetupDocumentRoutes(router *gin.Engine, docs *services.DocumentService, actionItems *services.ActionItemService, authMW *middleware.AuthMiddleware) {
	group := router.Group("/documents", authMW.RequireAuth())

	group.POST("/upload", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, "file field is required")
			return
		}

		resp, err := docs.Upload(c.Request.Context(), userID, fileHeader)
		if err != nil {
			respondUploadError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	})

	group.POST("/text", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		var req models.TextImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := docs.ImportText(c.Request.Context(), userID, req)
		if err != nil {
			respondUploadError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	})

	group.POST("/url", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		var req models.URLImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := docs.ImportURL(c.Request.Context(), userID, req)
		if err != nil {
			respondUploadError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	})

	group.POST("/youtube", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		var req models.YouTubeImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := docs.ImportYouTube(c.Request.Context(), userID, req)
		if err != nil {
			respondUploadError(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp)
	})

	group.GET("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
		status := c.Query("status")

		list, total, err := docs.List(c.Request.Context(), userID, status, page, pageSize)
		if err != nil {
			logger.Error("Document listing failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"documents": list,
			"total":     total,
			"page":      page,
			"page_size": pageSize,
		})
	})

	group.GET("/:id", func(c *gin.Context) {
		userID, docID, ok := pathIDs(c)
		if !ok {
			return
		}
		doc, err := docs.Get(c.Request.Context(), userID, docID)
		if err != nil {
			utils.RespondNotFound(c, "document")
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	group.GET("/:id/chunks", func(c *gin.Context) {
		userID, docID, ok := pathIDs(c)
		if !ok {
			return
		}
		chunks, err := docs.Chunks(c.Request.Context(), userID, docID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondNotFound(c, "document")
				return
			}
			logger.Error("Chunk listing failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chunks": chunks, "count": len(chunks)})
	})

	group.POST("/:id/reprocess", func(c *gin.Context) {
		userID, docID, ok := pathIDs(c)
		if !ok {
			return
		}
		resp, err := docs.Reprocess(c.Request.Context(), userID, docID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondNotFound(c, "document")
				return
			}
			utils.RespondError(c, http.StatusConflict, err.Error())
			return
		}
		c.JSON(http.StatusAccepted, resp)
	})

	group.POST("/:id/action-items", func(c *gin.Context) {
		userID, docID, ok := pathIDs(c)
		if !ok {
			return
		}
		items, err := actionItems.Extract(c.Request.Context(), userID, docID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondNotFound(c, "document")
				return
			}
			logger.Error("Action item extraction failed", "error", err)
			utils.RespondError(c, http.StatusBadGateway, "action item extraction failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"action_items": items, "count": len(items)})
	})

	group.DELETE("/:id", func(c *gin.Context) {
		userID, docID, ok := pathIDs(c)
		if !ok {
			return
		}
		if err := docs.Delete(c.Request.Context(), userID, docID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondNotFound(c, "document")
				return
			}
			logger.Error("Document deletion failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
	})
}

func pathIDs(c *gin.Context) (userID, resourceID primitive.ObjectID, ok bool) {
	userID, ok = middleware.GetUserObjectID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
		return
	}
	resourceID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "invalid id")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return userID, resourceID, true
}

func respondUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDuplicateDocument):
		utils.RespondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrFileTooLarge),
		errors.Is(err, services.ErrUnsupportedType):
		utils.RespondError(c, http.StatusBadRequest, err.Error())
	default:
		logger.Error("Document intake failed", "error", err)
		utils.RespondError(c, http.StatusUnprocessableEntity, err.Error())
	}
}
