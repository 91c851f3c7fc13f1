package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workday/config"
	"workday/internal/auth"
	"workday/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWT = &config.JWTConfig{AccessSecret: "mw-secret", AccessExpiry: time.Hour, Issuer: "test"}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":    GetUserID(c),
			"company_id": GetCompanyID(c),
			"session_id": GetSessionID(c),
		})
	})...)
	return r
}

func do(r http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	tok, claims, err := auth.GenerateAccessToken(testJWT, 7, 3, "a@b.c", domain.RoleEmployee)
	require.NoError(t, err)
	r := newEngine(AuthRequired(testJWT))

	w := do(r, "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"company_id":3`)
	assert.Contains(t, w.Body.String(), claims.SessionID())

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token "+tok).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer nope").Code)
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(OptionalAuth(testJWT))

	w := do(r, "Bearer nope")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":0`)
}

func TestAdminRequired(t *testing.T) {
	admin, _, err := auth.GenerateAccessToken(testJWT, 1, 3, "a@b.c", domain.RoleAdmin)
	require.NoError(t, err)
	emp, _, err := auth.GenerateAccessToken(testJWT, 2, 3, "e@b.c", domain.RoleEmployee)
	require.NoError(t, err)
	r := newEngine(AuthRequired(testJWT), AdminRequired())

	assert.Equal(t, http.StatusOK, do(r, "Bearer "+admin).Code)
	assert.Equal(t, http.StatusForbidden, do(r, "Bearer "+emp).Code)
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewInMemoryRateLimiter(ctx, 2, time.Minute)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("ip"))
	assert.True(t, l.Allow("ip"))
	assert.False(t, l.Allow("ip"))
	assert.True(t, l.Allow("other"))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("ip"))
}
