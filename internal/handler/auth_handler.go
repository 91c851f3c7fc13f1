package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"workday/internal/middleware"
	"workday/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authn service.Authenticator
	hooks *service.SessionHooks
	log   *slog.Logger
}

func NewAuthHandler(authn service.Authenticator, hooks *service.SessionHooks, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{authn: authn, hooks: hooks, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates and clocks the user in. Attendance failures are
// handled inside the hooks and never change the response.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, token, claims, err := h.authn.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("login failed", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	h.hooks.OnLogin(c.Request.Context(), service.LoginEvent{
		UserID:    u.ID,
		CompanyID: u.CompanyID,
		SessionID: claims.SessionID(),
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusOK, gin.H{
		"user":         u,
		"access_token": token,
		"expires_at":   claims.ExpiresAt.Time,
	})
}

// Logout always succeeds. The hooks resolve who is leaving from the token
// (even an expired one) or from the authenticated request.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.hooks.OnLogout(c.Request.Context(), service.LogoutEvent{
		Token:     middleware.BearerToken(c),
		UserID:    middleware.GetUserID(c),
		SessionID: middleware.GetSessionID(c),
	})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
