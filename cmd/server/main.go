package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"workday/config"
	"workday/internal/database"
	"workday/internal/repository"
	"workday/internal/router"
	"workday/internal/service"
	"workday/internal/ws"
	"workday/pkg/slackreport"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := newLogger(cfg.Log)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.ResolveDSN(ctx, &cfg.Database, nil); err != nil {
		return err
	}
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	if err := database.SeedAdmin(db, &cfg.Database, log); err != nil {
		return err
	}

	backplane, err := newBackplane(ctx, cfg.Realtime, log)
	if err != nil {
		return err
	}
	presence := ws.NewBroadcaster(ws.NewHub(), backplane, log)
	if err := presence.Start(ctx); err != nil {
		return err
	}
	defer presence.Close()

	policy, err := service.NewAttendancePolicy(cfg.Attendance)
	if err != nil {
		return err
	}
	attendance := service.NewAttendanceService(repository.NewAttendanceRepository(db), presence, policy, log)

	var reporter service.Reporter
	if cfg.Slack.Token != "" && cfg.Slack.ChannelID != "" {
		reporter = slackreport.New(cfg.Slack.Token, cfg.Slack.ChannelID, policy.Location)
	}
	reconciler := service.NewReconciler(attendance, reporter, log)
	reconcileDone := make(chan struct{})
	go func() {
		defer close(reconcileDone)
		reconciler.Run(ctx)
	}()

	engine := router.Setup(ctx, cfg, router.Deps{
		DB:         db,
		Attendance: attendance,
		Reconciler: reconciler,
		Presence:   presence,
		Log:        log,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "backplane", cfg.Realtime.Backplane)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-reconcileDone
	log.Info("server stopped")
	return nil
}

func newBackplane(ctx context.Context, cfg config.RealtimeConfig, log *slog.Logger) (ws.Backplane, error) {
	if cfg.Backplane != "redis" {
		return ws.NewLocalBackplane(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return ws.NewRedisBackplane(rdb, cfg.ChannelPrefix, log), nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
