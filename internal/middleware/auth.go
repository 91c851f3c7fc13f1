package middleware

import (
	"net/http"
	"strings"

	"workday/config"
	"workday/internal/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthRequired and OptionalAuth.
const (
	keyUserID    = "user_id"
	keyCompanyID = "company_id"
	keyRole      = "role"
	keySessionID = "session_id"
)

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthRequired validates the JWT and sets the caller's identity, tenant and
// session id in context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the identity when a valid token is present and lets the
// request through either way. Logout uses it so an expired session can
// still sign out.
func OptionalAuth(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c); token != "" {
			if claims, err := auth.ParseAccessToken(cfg, token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *auth.Claims) {
	c.Set(keyUserID, claims.UserID)
	c.Set(keyCompanyID, claims.CompanyID)
	c.Set(keyRole, claims.Role)
	c.Set(keySessionID, claims.SessionID())
}

// GetUserID returns the authenticated user ID from context, or 0.
func GetUserID(c *gin.Context) uint {
	return c.GetUint(keyUserID)
}

// GetCompanyID returns the caller's tenant. Every attendance query filters by it.
func GetCompanyID(c *gin.Context) uint {
	return c.GetUint(keyCompanyID)
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(keySessionID)
}

func GetRole(c *gin.Context) string {
	return c.GetString(keyRole)
}
