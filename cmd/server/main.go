// campusgig server
//
// Campus task marketplace backend: posters create paid tasks, helpers accept
// and complete them, both sides rate each other afterward. One binary wires
// the store, the invalidation bus, the marketplace services, the read cache
// and the REST surface, plus the notification janitor.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"campusgig/internal/bus"
	"campusgig/internal/config"
	"campusgig/internal/httpapi"
	"campusgig/internal/janitor"
	"campusgig/internal/logger"
	"campusgig/internal/marketplace"
	"campusgig/internal/readcache"
	"campusgig/internal/storage/postgres"
)

const version = "1.0.0"

func main() {
	// Best-effort: a missing .env just means real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL (pool + migrations) ──────────────────────────────────────
	store, err := postgres.Open(ctx, cfg.DatabaseURL, zlog)
	if err != nil {
		zlog.Fatal("postgres connect failed", zap.Error(err))
	}
	defer store.Close()
	zlog.Info("postgres connected")

	// ── Redis (invalidation bus + rate limiter) ─────────────────────────────
	rdb, err := bus.Connect(ctx, cfg.RedisURL)
	if err != nil {
		zlog.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()
	zlog.Info("redis connected")
	b := bus.NewRedis(rdb, zlog)

	// ── Services ────────────────────────────────────────────────────────────
	notifs := marketplace.NewNotificationService(store, b, zlog)
	jobs := marketplace.NewJobService(store, b, notifs, zlog)
	ratings := marketplace.NewRatingService(store, b, notifs, zlog)
	profiles := marketplace.NewProfileService(store, zlog)

	// ── Read cache ──────────────────────────────────────────────────────────
	session := readcache.NewSession(marketplace.NewReader(store), zlog)
	if err := session.AttachBus(ctx, b); err != nil {
		zlog.Fatal("bus subscribe failed", zap.Error(err))
	}

	// ── HTTP server ─────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	h := httpapi.NewHandler(jobs, ratings, notifs, profiles, session, zlog)
	h.RegisterRoutes(mux)

	limiter := httpapi.NewRateLimiter(rdb, cfg.RateLimitPerMinute, zlog)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      limiter.Middleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── Janitor ─────────────────────────────────────────────────────────────
	jan := janitor.New(store, cfg.NotificationRetention, cfg.JanitorIntervalHours, zlog)
	if err := jan.Start(ctx); err != nil {
		zlog.Fatal("janitor start failed", zap.Error(err))
	}

	go func() {
		zlog.Info("listening", zap.String("version", version), zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}
	jan.Stop()
	zlog.Info("stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "campusgig",
		"version": version,
	})
}
