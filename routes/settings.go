package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docquery-platform/internal/logger"
	"docquery-platform/middleware"
	"docquery-platform/models"
	"docquery-platform/services"
	"docquery-platform/utils"
)

func SetupSettingsRoutes(router *gin.Engine, settings *services.SettingsService, exports *services.ExportService, authMW *middleware.AuthMiddleware) {
	group := router.Group("/settings", authMW.RequireAuth())

	group.GET("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}
		stored, err := settings.Get(c.Request.Context(), userID)
		if err != nil {
			logger.Error("Settings fetch failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, stored.Redacted())
	})

	group.PUT("", func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}
		var req models.SettingsUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := settings.Update(c.Request.Context(), userID, req)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}
		c.JSON(http.StatusOK, updated.Redacted())
	})

	router.GET("/export/queries", authMW.RequireAuth(), func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}

		format := c.DefaultQuery("format", services.FormatJSON)
		from := parseDateQuery(c.Query("from"))
		to := parseDateQuery(c.Query("to"))
		if !to.IsZero() {
			// Make the bound inclusive of the whole day.
			to = to.Add(24*time.Hour - time.Nanosecond)
		}

		file, err := exports.ExportQueries(c.Request.Context(), userID, format, from, to)
		if err != nil {
			logger.Error("Export failed", "format", format, "error", err)
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(file.Filename))
		c.Header("X-Record-Count", strconv.Itoa(file.RecordCount))
		c.Data(http.StatusOK, file.ContentType, file.Data)
	})
}

func parseDateQuery(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return time.Time{}
}
