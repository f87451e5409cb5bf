// Package main provides the HTTP server of the credit risk engine.
// It serves the score API used by the application form layer, plus
// health and Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"credit-risk-engine/internal/bootstrap"
	"credit-risk-engine/internal/config"
	"credit-risk-engine/internal/handlers"
	"credit-risk-engine/internal/metrics"
	"credit-risk-engine/internal/utils"
)

const shutdownTimeout = 15 * time.Second

// Server holds all dependencies
type Server struct {
	engine *bootstrap.Engine
	score  *handlers.ScoreHandler
	health *handlers.HealthHandler
}

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := utils.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Alerts: true})
	if err != nil {
		logger.Fatal("Failed to build scoring engine", zap.Error(err))
	}
	defer engine.Close()

	server := newServer(engine)

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.routes(cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	logger.Info("Credit Risk Engine API Server",
		zap.String("addr", addr),
		zap.String("stage", cfg.Stage),
		zap.String("policy_version", cfg.PolicyVersion),
		zap.String("model_version", engine.Dispatcher.ModelVersion()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown failed", zap.Error(err))
	}

	// Let pending audit writes and alerts finish
	server.score.Close()
}

func newServer(engine *bootstrap.Engine) *Server {
	cfg := engine.Config

	var opts []handlers.ScoreOption
	if engine.Predictions != nil {
		opts = append(opts, handlers.WithAuditor(engine.Predictions))
	}
	if engine.Alerts != nil {
		opts = append(opts, handlers.WithReviewAlerts(engine.Alerts, cfg.ReviewAlertRecipient, cfg.ReviewAlertThreshold))
	}

	// A nil *database.DB must not become a non-nil Pinger
	var db handlers.Pinger
	if engine.DB != nil {
		db = engine.DB
	}

	return &Server{
		engine: engine,
		score:  handlers.NewScoreHandler(engine.Dispatcher, opts...),
		health: handlers.NewHealthHandler(handlers.HealthInfo{
			Stage:         cfg.Stage,
			Version:       cfg.ServiceVersion,
			PolicyVersion: cfg.PolicyVersion,
			ModelVersion:  engine.Dispatcher.ModelVersion(),
		}, db),
	}
}

func (s *Server) routes(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.Handle("GET /health", s.health)
	mux.Handle("GET /api/health", s.health)

	// Scoring
	mux.Handle("POST /api/score", s.score)
	mux.Handle("POST /api/score/{kind}", s.score)
	mux.Handle("POST /api/score/{kind}/", s.score)

	// Prometheus
	mux.Handle("GET /metrics", metrics.Handler())

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", handlers.HeaderRequestID},
		ExposedHeaders: []string{handlers.HeaderRequestID},
	})

	return c.Handler(mux)
}
