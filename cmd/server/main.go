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

	"github.com/leaderboard-rewards/internal/config"
	"github.com/leaderboard-rewards/internal/handler"
	"github.com/leaderboard-rewards/internal/kafka"
	"github.com/leaderboard-rewards/internal/postgres"
	"github.com/leaderboard-rewards/internal/redis"
	"github.com/leaderboard-rewards/internal/service"
	"github.com/leaderboard-rewards/internal/websocket"
	"github.com/leaderboard-rewards/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	scoreIndex := redis.NewScoreIndex(redisClient, logger)
	warmupLock := redis.NewLock(redisClient, redis.WarmupLockKey, cfg.Leaderboard.LockTTL)
	distributeLock := redis.NewLock(redisClient, redis.DistributeLockKey, cfg.Leaderboard.LockTTL)
	rewardPool := redis.NewRewardPool(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient, cfg.Leaderboard.RateLimitRequests, cfg.Leaderboard.RateLimitWindow)

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	playerRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer playerRepo.Close()
	logger.Info("connected to PostgreSQL")

	if err := playerRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the leaderboard engine
	leaderboardService := service.NewLeaderboardService(
		playerRepo,
		scoreIndex,
		warmupLock,
		distributeLock,
		rewardPool,
		rateLimiter,
		&cfg.Leaderboard,
		logger,
	)
	leaderboardService.SetHub(wsHub)

	// Weekly distribution scheduler shares the service entry point with
	// the administrative trigger
	scheduler := worker.NewScheduler(leaderboardService, &cfg.Scheduler, logger)
	if cfg.Scheduler.Enabled {
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start distribution scheduler", "error", err)
			os.Exit(1)
		}
	}

	// Kafka consumer for high-load score event ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, leaderboardService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// HTTP surface
	httpHandler := handler.NewHandler(leaderboardService, wsHub, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if err := scheduler.Stop(); err != nil {
		logger.Error("failed to stop distribution scheduler", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
