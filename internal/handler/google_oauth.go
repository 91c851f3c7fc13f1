package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"workday/config"
	"workday/internal/auth"
	"workday/internal/models"
	"workday/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateCookie = "oauth_state"
	googleUserInfo   = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// GoogleLogin resolves a Google identity to a local user and session.
type GoogleLogin interface {
	LoginWithGoogle(ctx context.Context, googleID, email, name string) (*models.User, string, *auth.Claims, error)
}

type GoogleOAuthHandler struct {
	cfg      *config.Config
	login    GoogleLogin
	hooks    *service.SessionHooks
	log      *slog.Logger
	userInfo string
	endpoint oauth2.Endpoint
}

func NewGoogleOAuthHandler(cfg *config.Config, login GoogleLogin, hooks *service.SessionHooks, log *slog.Logger) *GoogleOAuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GoogleOAuthHandler{
		cfg:      cfg,
		login:    login,
		hooks:    hooks,
		log:      log,
		userInfo: googleUserInfo,
		endpoint: google.Endpoint,
	}
}

func (h *GoogleOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.GoogleClientID,
		ClientSecret: h.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  h.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     h.endpoint,
	}
}

// Redirect sends the user to the Google consent screen.
func (h *GoogleOAuthHandler) Redirect(c *gin.Context) {
	if h.cfg.OAuth.GoogleClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.cfg.Server.Env == "production", true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state))
}

type googleUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Callback exchanges the code, resolves the user and its company from the
// Google identity, issues a session and clocks the user in.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if h.cfg.OAuth.GoogleClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	state, err := c.Cookie(oauthStateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return
	}
	ctx := c.Request.Context()
	conf := h.OAuth2Config()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exchange failed"})
		return
	}
	resp, err := conf.Client(ctx, tok).Get(h.userInfo)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get user info"})
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get user info"})
		return
	}
	var info googleUser
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.ID == "" || info.Email == "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": "invalid user info"})
		return
	}
	u, access, claims, err := h.login.LoginWithGoogle(ctx, info.ID, info.Email, info.Name)
	if err != nil {
		h.log.Error("google login failed", "email", info.Email, "error", err)
		c.JSON(http.StatusForbidden, gin.H{"error": "login failed"})
		return
	}
	h.hooks.OnOAuthLogin(ctx, service.LoginEvent{
		UserID:    u.ID,
		CompanyID: claims.CompanyID,
		SessionID: claims.SessionID(),
		IP:        c.ClientIP(),
	})
	c.SetCookie(oauthStateCookie, "", -1, "/", "", h.cfg.Server.Env == "production", true)
	c.JSON(http.StatusOK, gin.H{
		"user":         u,
		"access_token": access,
		"expires_at":   claims.ExpiresAt.Time,
	})
}
