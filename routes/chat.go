package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/logger"
	"docquery-platform/middleware"
	"docquery-platform/models"
	"docquery-platform/services"
	"docquery-platform/utils"
)

// streamWordsPerEvent is the chunk size for the SSE message endpoint.
const streamWordsPerEvent = 3

func streamEvent(c *gin.Context, payload gin.H) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}

func SetupChatRoutes(router *gin.Engine, chat *services.ChatService, exports *services.ExportService, authMW *middleware.AuthMiddleware) {
	group := router.Group("/chat/sessions", authMW.RequireAuth())

	group.POST("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		var req models.ChatSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		session, err := chat.CreateSession(c.Request.Context(), userID, req)
		if err != nil {
			logger.Error("Session creation failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusCreated, session)
	})

	group.GET("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}
		sessions, err := chat.ListSessions(c.Request.Context(), userID)
		if err != nil {
			logger.Error("Session listing failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	group.GET("/:id", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		session, err := chat.GetSession(c.Request.Context(), userID, sessionID)
		if err != nil {
			utils.RespondNotFound(c, "session")
			return
		}
		c.JSON(http.StatusOK, session)
	})

	group.PUT("/:id", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		var req models.ChatSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		session, err := chat.UpdateSession(c.Request.Context(), userID, sessionID, req)
		if err != nil {
			utils.RespondNotFound(c, "session")
			return
		}
		c.JSON(http.StatusOK, session)
	})

	group.DELETE("/:id", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		if err := chat.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
			utils.RespondNotFound(c, "session")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
	})

	group.GET("/:id/messages", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		messages, err := chat.Messages(c.Request.Context(), userID, sessionID)
		if err != nil {
			utils.RespondNotFound(c, "session")
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages})
	})

	group.POST("/:id/messages", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		var req models.ChatMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		msg, err := chat.SendMessage(c.Request.Context(), userID, sessionID, req.Content)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondNotFound(c, "session")
				return
			}
			logger.Error("Chat turn failed", "error", err)
			utils.RespondError(c, http.StatusBadGateway, "message processing failed")
			return
		}
		c.JSON(http.StatusOK, msg)
	})

	// Server-sent events variant of the message endpoint. The answer is
	// generated in full, then delivered to the client a few words at a
	// time so the UI can render progressively.
	group.GET("/:id/stream", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		content := c.Query("message")
		if content == "" {
			utils.RespondError(c, http.StatusBadRequest, "message query parameter is required")
			return
		}

		// Ownership check before committing to the event stream; once
		// headers go out we can only report errors as events.
		if _, err := chat.GetSession(c.Request.Context(), userID, sessionID); err != nil {
			utils.RespondNotFound(c, "session")
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		streamEvent(c, gin.H{"type": "thinking", "message": "Searching documents..."})

		msg, err := chat.SendMessage(c.Request.Context(), userID, sessionID, content)
		if err != nil {
			logger.Error("Chat stream turn failed", "error", err)
			streamEvent(c, gin.H{"type": "error", "error": "message processing failed"})
			streamEvent(c, gin.H{"type": "done"})
			return
		}

		words := strings.Fields(msg.Content)
		for i := 0; i < len(words); i += streamWordsPerEvent {
			end := min(i+streamWordsPerEvent, len(words))
			chunk := strings.Join(words[i:end], " ")
			if end < len(words) {
				chunk += " "
			}
			streamEvent(c, gin.H{"type": "content", "content": chunk})
		}

		streamEvent(c, gin.H{
			"type":               "complete",
			"message_id":         msg.ID.Hex(),
			"sources":            msg.Sources,
			"model_used":         msg.ModelUsed,
			"generation_time_ms": msg.GenerationTimeMs,
		})
		streamEvent(c, gin.H{"type": "done"})
	})

	group.GET("/:id/export", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		file, err := exports.ExportSession(c.Request.Context(), userID, sessionID)
		if err != nil {
			utils.RespondNotFound(c, "session")
			return
		}
		c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"")
		c.Data(http.StatusOK, file.ContentType, file.Data)
	})

	group.POST("/:id/messages/:messageId/feedback", func(c *gin.Context) {
		userID, sessionID, ok := pathIDs(c)
		if !ok {
			return
		}
		messageID, err := primitive.ObjectIDFromHex(c.Param("messageId"))
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, "invalid message id")
			return
		}

		var fb models.MessageFeedback
		if err := c.ShouldBindJSON(&fb); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		if err := chat.RateMessage(c.Request.Context(), userID, sessionID, messageID, fb); err != nil {
			utils.RespondNotFound(c, "message")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "feedback recorded"})
	})
}
