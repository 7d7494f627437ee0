package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locksync/internal/api"
	"locksync/internal/binding"
	"locksync/internal/bus"
	"locksync/internal/chain"
	"locksync/internal/config"
	"locksync/internal/owners"
	"locksync/internal/retry"
	"locksync/internal/service"
	"locksync/internal/storage"
	"locksync/internal/tracker"
	"locksync/internal/view"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔐 Starting locksync...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"rpc_url", cfg.RPCURL,
		"block_time", cfg.BlockTime,
		"required_confirmations", cfg.RequiredConfirmations,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect to the node
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to RPC node: %v", err)
	}
	defer client.Close()
	slog.Info("RPC node connected")

	// 4. Optional PostgreSQL mirror
	var repo storage.Repository
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("❌ Failed to migrate database: %v", err)
		}
		repo = pg
		slog.Info("Database connected successfully")
	}

	// 5. Wire the event bus and the materialized view
	b := bus.New()
	v, err := view.New(ctx, b, repo)
	if err != nil {
		log.Fatalf("❌ Failed to build view: %v", err)
	}
	if err := v.Rehydrate(ctx); err != nil {
		log.Fatalf("❌ Failed to rehydrate view: %v", err)
	}

	// 6. Bindings, tracker and enumerator
	registry := binding.NewRegistry(client)
	strategy := retry.NewStrategy(retry.LoadConfig())

	trk := tracker.New(client, registry, b, tracker.Config{
		BlockTime:             cfg.BlockTime,
		RequiredConfirmations: cfg.RequiredConfirmations,
		MaxAttempts:           cfg.MaxPollAttempts,
		MaxDelay:              cfg.MaxPollDelay,
	}, strategy)

	enum := owners.New(client, registry, b, strategy)
	svc := service.New(client, registry, b, trk, enum)

	// Resolving the factory up front warms the binding cache and surfaces a
	// bad UNLOCK_ADDRESS at startup instead of on first use
	if cfg.UnlockAddress != "" {
		if !common.IsHexAddress(cfg.UnlockAddress) {
			log.Fatalf("❌ UNLOCK_ADDRESS is not a valid address: %s", cfg.UnlockAddress)
		}
		version, err := svc.LockVersion(ctx, common.HexToAddress(cfg.UnlockAddress))
		if err != nil {
			slog.Warn("Could not resolve factory contract yet",
				"unlock_address", cfg.UnlockAddress,
				"error", err,
			)
		} else {
			slog.Info("Factory contract resolved",
				"unlock_address", cfg.UnlockAddress,
				"version", version,
			)
		}
	}

	// 7. HTTP API
	server := api.NewServer(cfg.APIPort, v)
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Failed to start API server: %v", err)
	}

	slog.Info("locksync ready",
		"api_port", cfg.APIPort,
		"unlock_address", cfg.UnlockAddress,
	)

	// 8. Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Warn("Interrupt received, shutting down...")
	cancel()
	svc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping API server", "error", err)
	}

	slog.Info("locksync stopped")
}
