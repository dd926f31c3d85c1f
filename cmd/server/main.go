package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kokodi-server/internal/auth"
	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/game"
	"github.com/kokodi-server/internal/handler"
	"github.com/kokodi-server/internal/kafka"
	"github.com/kokodi-server/internal/postgres"
	"github.com/kokodi-server/internal/redis"
	"github.com/kokodi-server/internal/websocket"
	"github.com/kokodi-server/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Redis. The server degrades gracefully without it: session
	// locks fall back to in-process mutexes and the leaderboard is disabled.
	var redisService *redis.Service
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisService, err = redis.NewService(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without it", "error", err)
		redisService = nil
	} else {
		defer redisService.Close()
		logger.Info("connected to Redis")
	}

	var sessions game.SessionStore = repo
	var locks game.Locker = game.NewMutexLocker()
	if redisService != nil {
		sessions = redis.NewCachedStore(repo, redisService)
		locks = redisService
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	gameService := game.NewService(sessions, repo, locks, &cfg.Game, logger)
	gameService.AddSink(wsHub)

	authService := auth.NewService(repo, &cfg.Auth, logger)

	// Initialize Kafka producer for the game event stream
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka producer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		producer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without Kafka", "error", err)
		} else {
			gameService.AddSink(producer)
			logger.Info("Kafka producer started")
		}
	}

	// Initialize the wins leaderboard worker
	var lbWorker *worker.LeaderboardWorker
	if redisService != nil && cfg.Leaderboard.Enabled {
		lbWorker = worker.NewLeaderboardWorker(redisService, repo, &cfg.Leaderboard, logger)
		if err := lbWorker.Start(ctx); err != nil {
			logger.Error("failed to start leaderboard worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP handler
	var wins handler.WinsSource
	if redisService != nil {
		wins = redisService
	}
	httpHandler := handler.NewHandler(gameService, authService, wsHub, wins, cfg.Leaderboard.TopN, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka producer
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("failed to stop Kafka producer", "error", err)
		}
	}

	// Stop leaderboard worker
	if lbWorker != nil {
		if err := lbWorker.Stop(); err != nil {
			logger.Error("failed to stop leaderboard worker", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
