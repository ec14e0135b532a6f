package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"docquery-platform/internal/auth"
	"docquery-platform/internal/config"
	"docquery-platform/internal/logger"
	"docquery-platform/middleware"
	"docquery-platform/models"
	"docquery-platform/utils"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, db *mongo.Database, tokens *auth.Manager, authMW *middleware.AuthMiddleware) {
	users := db.Collection("users")
	group := router.Group("/auth")

	group.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx := c.Request.Context()
		count, err := users.CountDocuments(ctx, bson.M{"$or": []bson.M{
			{"email": req.Email},
			{"username": req.Username},
		}})
		if err != nil {
			logger.Error("Registration lookup failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		if count > 0 {
			utils.RespondError(c, http.StatusConflict, "email or username already registered")
			return
		}

		hash, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondInternalError(c)
			return
		}

		now := time.Now()
		user := models.User{
			Email:        req.Email,
			Username:     req.Username,
			PasswordHash: hash,
			FullName:     req.FullName,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		res, err := users.InsertOne(ctx, user)
		if err != nil {
			logger.Error("Could not create user", "error", err)
			utils.RespondInternalError(c)
			return
		}
		user.ID = res.InsertedID.(primitive.ObjectID)

		logger.Info("User registered", "user_id", user.ID.Hex(), "username", user.Username)
		c.JSON(http.StatusCreated, user)
	})

	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx := c.Request.Context()
		var user models.User
		err := users.FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
		if err != nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondError(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if !user.IsActive {
			utils.RespondError(c, http.StatusForbidden, "account is disabled")
			return
		}

		pair, err := tokens.IssueTokenPair(ctx, user.ID.Hex(), user.Username)
		if err != nil {
			logger.Error("Token issue failed", "error", err)
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, pair)
	})

	group.POST("/refresh", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx := c.Request.Context()
		claims, err := tokens.ValidateRefreshToken(ctx, req.RefreshToken)
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, "invalid refresh token")
			return
		}

		// Rotate: the old refresh token dies with this exchange.
		if err := tokens.Revoke(ctx, claims.ID, true); err != nil {
			logger.Warn("Could not revoke rotated refresh token", "error", err)
		}

		pair, err := tokens.IssueTokenPair(ctx, claims.UserID, claims.Username)
		if err != nil {
			utils.RespondInternalError(c)
			return
		}
		c.JSON(http.StatusOK, pair)
	})

	group.POST("/logout", authMW.RequireAuth(), func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if err := tokens.RevokeAllForUser(c.Request.Context(), userID); err != nil {
			logger.Warn("Logout revocation failed", "user_id", userID, "error", err)
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	})

	group.GET("/me", authMW.RequireAuth(), func(c *gin.Context) {
		userID, ok := middleware.GetUserObjectID(c)
		if !ok {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token subject")
			return
		}
		var user models.User
		if err := users.FindOne(c.Request.Context(), bson.M{"_id": userID}).Decode(&user); err != nil {
			utils.RespondNotFound(c, "user")
			return
		}
		c.JSON(http.StatusOK, user)
	})
}
