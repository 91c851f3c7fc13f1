package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"workday/config"
	"workday/internal/auth"
	"workday/internal/models"
)

const hookTimeout = 5 * time.Second

// ClockRecorder is the part of the attendance engine the session hooks drive.
type ClockRecorder interface {
	AutoClockIn(ctx context.Context, userID, companyID uint, sessionID, ip string) (*models.AttendanceRecord, error)
	AutoClockOut(ctx context.Context, userID uint, sessionID string) (*models.AttendanceRecord, error)
}

// LoginEvent is what the auth flow knows after it issued a session.
type LoginEvent struct {
	UserID    uint
	CompanyID uint
	SessionID string
	IP        string
}

// LogoutEvent carries whatever identity the logout request still has. Token
// is the raw session token if one was presented; UserID and SessionID come
// from the authenticated request context and may be empty.
type LogoutEvent struct {
	Token     string
	UserID    uint
	SessionID string
}

// SessionHooks turns auth events into clock-in and clock-out calls. Nothing
// in here ever fails the caller: errors and panics are logged and dropped.
type SessionHooks struct {
	recorder ClockRecorder
	jwtCfg   *config.JWTConfig
	log      *slog.Logger
}

func NewSessionHooks(recorder ClockRecorder, jwtCfg *config.JWTConfig, log *slog.Logger) *SessionHooks {
	if log == nil {
		log = slog.Default()
	}
	return &SessionHooks{recorder: recorder, jwtCfg: jwtCfg, log: log.With("component", "session_hooks")}
}

// OnLogin clocks the user in after a successful credential login.
func (h *SessionHooks) OnLogin(ctx context.Context, ev LoginEvent) {
	h.guard(ctx, "login", ev.UserID, func(ctx context.Context) error {
		_, err := h.recorder.AutoClockIn(ctx, ev.UserID, ev.CompanyID, ev.SessionID, ev.IP)
		return err
	})
}

// OnOAuthLogin clocks the user in after an SSO callback. CompanyID must be
// the tenant of the identity the OAuth provider resolved to.
func (h *SessionHooks) OnOAuthLogin(ctx context.Context, ev LoginEvent) {
	h.guard(ctx, "oauth_login", ev.UserID, func(ctx context.Context) error {
		if ev.CompanyID == 0 {
			return fmt.Errorf("oauth identity for user %d has no company", ev.UserID)
		}
		_, err := h.recorder.AutoClockIn(ctx, ev.UserID, ev.CompanyID, ev.SessionID, ev.IP)
		return err
	})
}

// OnLogout clocks the user out. The user comes from the session token when
// its signature checks out (expired tokens included), else from the request
// identity; with neither it does nothing.
func (h *SessionHooks) OnLogout(ctx context.Context, ev LogoutEvent) {
	userID, sessionID := h.resolveLogout(ev)
	if userID == 0 {
		h.log.Debug("logout without identity, skipping clock-out")
		return
	}
	h.guard(ctx, "logout", userID, func(ctx context.Context) error {
		_, err := h.recorder.AutoClockOut(ctx, userID, sessionID)
		return err
	})
}

func (h *SessionHooks) resolveLogout(ev LogoutEvent) (uint, string) {
	if ev.Token != "" && h.jwtCfg != nil {
		if claims, err := auth.ParseSessionToken(h.jwtCfg, ev.Token); err == nil {
			return claims.UserID, claims.SessionID()
		}
	}
	return ev.UserID, ev.SessionID
}

// guard runs fn detached from the request's cancellation so an aborted
// client request still records attendance, bounded by hookTimeout.
func (h *SessionHooks) guard(ctx context.Context, hook string, userID uint, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hookTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("attendance hook panicked", "hook", hook, "user_id", userID, "panic", rec)
		}
	}()
	if err := fn(ctx); err != nil {
		h.log.Error("attendance hook failed", "hook", hook, "user_id", userID, "error", err)
	}
}
