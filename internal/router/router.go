package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"workday/config"
	"workday/internal/handler"
	"workday/internal/middleware"
	"workday/internal/repository"
	"workday/internal/service"
	"workday/internal/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the long-lived components built by main and shared with the
// background reconciler.
type Deps struct {
	DB         *gorm.DB
	Attendance *service.AttendanceService
	Reconciler *service.Reconciler
	Presence   *ws.Broadcaster
	Log        *slog.Logger
}

// Setup wires handlers and routes. ctx bounds the router's own background
// work (rate-limit cleanup).
func Setup(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))

	userRepo := repository.NewUserRepository(d.DB)
	authSvc := service.NewAuthService(cfg, userRepo)
	hooks := service.NewSessionHooks(d.Attendance, &cfg.JWT, d.Log)

	authHandler := handler.NewAuthHandler(authSvc, hooks, d.Log)
	googleOAuthHandler := handler.NewGoogleOAuthHandler(cfg, authSvc, hooks, d.Log)
	attendanceHandler := handler.NewAttendanceHandler(d.Attendance, d.Reconciler, d.Log)

	authMw := middleware.AuthRequired(&cfg.JWT)
	loginLimit := middleware.RateLimit(middleware.NewInMemoryRateLimiter(ctx, 20, time.Minute))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/presence", ws.ServePresenceWS(&cfg.JWT, d.Presence, cfg.Realtime.SendBuffer))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", loginLimit, authHandler.Login)
			authGroup.POST("/logout", middleware.OptionalAuth(&cfg.JWT), authHandler.Logout)
			authGroup.GET("/google", googleOAuthHandler.Redirect)
			authGroup.GET("/google/callback", loginLimit, googleOAuthHandler.Callback)
		}

		attendance := api.Group("/attendance")
		attendance.Use(authMw)
		{
			attendance.GET("/today", attendanceHandler.Today)
			attendance.GET("/history", attendanceHandler.History)
			attendance.GET("/stats", attendanceHandler.Stats)
		}

		admin := api.Group("/admin/attendance")
		admin.Use(authMw, middleware.AdminRequired())
		{
			admin.GET("/active", attendanceHandler.Active)
			admin.GET("/all", attendanceHandler.All)
			admin.POST("/fix-stale", attendanceHandler.FixStale)
			admin.GET("/export", attendanceHandler.Export)
		}
	}
	return r
}
