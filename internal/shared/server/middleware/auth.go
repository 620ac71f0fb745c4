package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/shared/auth"
	"medicare-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
)

// AuthConfig controls which requests may skip authentication.
type AuthConfig struct {
	// PublicPaths are matched exactly against the request path.
	PublicPaths []string
	// QueryTokenPaths accept the token from the "token" query parameter.
	// Browsers cannot set headers on websocket upgrades.
	QueryTokenPaths []string
}

// Auth validates bearer JWTs and stores identity in context.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	public := toSet(cfg.PublicPaths)
	queryToken := toSet(cfg.QueryTokenPaths)

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		path := c.Request.URL.Path
		if _, ok := public[path]; ok {
			c.Next()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if _, ok := queryToken[path]; ok {
				token = strings.TrimSpace(c.Query("token"))
			}
		}
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyJWT(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		if claims.Email != "" {
			c.Set(userEmailKey, claims.Email)
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}
