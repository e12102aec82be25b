// Package main provides the API server entry point for the follow scanner service.
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

	"github.com/follow-scanner/internal/adapter"
	"github.com/follow-scanner/internal/api"
	"github.com/follow-scanner/internal/config"
	"github.com/follow-scanner/internal/gating"
	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/service"
	"github.com/follow-scanner/internal/storage"
)

func main() {
	fmt.Println("Follow Scanner API Server")
	log.Println("Server starting...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Snapshots, premium and streak records share one key-value store
	var store storage.Store = storage.NewMemoryStore()
	if cfg.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, keeping state in process memory")
		} else {
			defer redis.Close()
			store = redis
			logger.WithFields(map[string]interface{}{
				"host": cfg.Redis.Host,
				"port": cfg.Redis.Port,
			}).Info("Connected to Redis")
		}
	} else {
		logger.Info("Redis disabled, keeping state in process memory")
	}

	// Initialize services
	logger.Info("Initializing services...")

	client := adapter.NewNeynarClient(&cfg.Upstream)
	scanService := service.NewScanService(client, gating.NewSnapshotCache(store))
	premiumService := gating.NewPremiumService(store, cfg.Gating)
	streakTracker := gating.NewStreakTracker(store)
	gate := gating.NewGate(cfg.Gating)

	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		FreeTierRPS:     cfg.RateLimit.FreeTier,
		PremiumTierRPS:  cfg.RateLimit.PremiumTier,

		ActivationSecret: cfg.Gating.ActivationSecret,
	}
	if serverConfig.ActivationSecret == "" {
		logger.Warn("PREMIUM_ACTIVATION_SECRET not set, premium activation is open to any caller")
	}

	server := api.NewServer(serverConfig, scanService, premiumService, streakTracker, gate)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
