package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docquery-platform/internal/config"
	"docquery-platform/models"
)

const issuer = "docquery-platform"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager issues and validates JWT pairs. Every issued token's JTI is
// mirrored in Redis so tokens can be revoked before they expire.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	rdb           *redis.Client
}

func NewManager(cfg *config.Config, rdb *redis.Client) (*Manager, error) {
	if len(cfg.AccessSecret) < 32 || len(cfg.RefreshSecret) < 32 {
		return nil, fmt.Errorf("ACCESS_SECRET and REFRESH_SECRET must be at least 32 characters")
	}
	return &Manager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessExpiresIn,
		refreshTTL:    cfg.RefreshExpiresIn,
		rdb:           rdb,
	}, nil
}

func (m *Manager) IssueTokenPair(ctx context.Context, userID, username string) (*models.TokenPair, error) {
	now := time.Now()
	accessJTI := uuid.NewString()
	refreshJTI := uuid.NewString()

	accessExp := now.Add(m.accessTTL)
	refreshExp := now.Add(m.refreshTTL)

	accessString, err := m.sign(userID, username, accessJTI, now, accessExp, m.accessSecret)
	if err != nil {
		return nil, err
	}
	refreshString, err := m.sign(userID, username, refreshJTI, now, refreshExp, m.refreshSecret)
	if err != nil {
		return nil, err
	}

	pipe := m.rdb.Pipeline()
	pipe.Set(ctx, "access:"+accessJTI, userID, m.accessTTL)
	pipe.Set(ctx, "refresh:"+refreshJTI, userID, m.refreshTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store token state: %w", err)
	}

	return &models.TokenPair{
		AccessToken:  accessString,
		RefreshToken: refreshString,
		TokenType:    "bearer",
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (m *Manager) sign(userID, username, jti string, now, exp time.Time, secret []byte) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	return m.validate(ctx, tokenString, m.accessSecret, "access:")
}

func (m *Manager) ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return m.validate(ctx, tokenString, m.refreshSecret, "refresh:")
}

func (m *Manager) validate(ctx context.Context, tokenString string, secret []byte, prefix string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	exists, err := m.rdb.Exists(ctx, prefix+claims.ID).Result()
	if err != nil || exists != 1 {
		return nil, fmt.Errorf("%w: revoked or expired", ErrInvalidToken)
	}
	return claims, nil
}

// Revoke invalidates one token by its JTI.
func (m *Manager) Revoke(ctx context.Context, jti string, isRefresh bool) error {
	prefix := "access:"
	if isRefresh {
		prefix = "refresh:"
	}
	return m.rdb.Del(ctx, prefix+jti).Err()
}

// RevokeAllForUser invalidates every live token for a user, e.g. after
// a password change.
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	pipe := m.rdb.Pipeline()
	for _, pattern := range []string{"access:*", "refresh:*"} {
		iter := m.rdb.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			if val, _ := m.rdb.Get(ctx, key).Result(); val == userID {
				pipe.Del(ctx, key)
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
