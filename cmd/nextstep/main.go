package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nextstep-labs/nextstep/internal/agents"
	"github.com/nextstep-labs/nextstep/internal/api"
	"github.com/nextstep-labs/nextstep/internal/chat"
	"github.com/nextstep-labs/nextstep/internal/config"
	"github.com/nextstep-labs/nextstep/internal/gemini"
	"github.com/nextstep-labs/nextstep/internal/notify"
	"github.com/nextstep-labs/nextstep/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// A missing .env is fine; config falls back to the environment.
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("nextstep starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	kv, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer kv.Close()
	slog.Info("storage ready", "driver", cfg.StorageDriver)

	// Gemini client
	if cfg.GeminiAPIKey == "" {
		slog.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}
	llm := gemini.NewClient(cfg.GeminiAPIKey, cfg.Model, agents.SystemInstruction, slog.Default())
	llm.SetTemperature(cfg.Temperature)
	llm.SetSearchGrounding(cfg.SearchGrounding)
	slog.Info("gemini client ready", "model", cfg.Model, "search", cfg.SearchGrounding)

	// NATS (optional — renderers can also poll the HTTP API)
	var publisher chat.Publisher
	if cfg.NatsURL != "" {
		nc, err := notify.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		publisher = nc
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without event stream")
	}

	// Session state
	manager := chat.NewManager(kv, llm, slog.Default())
	if err := manager.Restore(ctx); err != nil {
		slog.Error("failed to restore session state", "error", err)
		os.Exit(1)
	}
	active, _ := manager.Active()
	slog.Info("session state restored", "sessions", len(manager.Sessions()), "active", active.ID)

	controller := chat.NewController(manager, publisher, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, manager, controller, kv, publisher)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("nextstep ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("nextstep stopped")
}

func openStore(ctx context.Context, cfg config.Config) (store.KV, error) {
	switch cfg.StorageDriver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	case "memory":
		return store.NewMemory(), nil
	default:
		return store.NewSQLite(cfg.SQLitePath)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
