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

	"github.com/joho/godotenv"

	"github.com/flashwire/flashwire/internal/api"
	"github.com/flashwire/flashwire/internal/config"
	"github.com/flashwire/flashwire/internal/feed"
	"github.com/flashwire/flashwire/internal/notify"
	"github.com/flashwire/flashwire/internal/replay"
	"github.com/flashwire/flashwire/internal/scoring"
	"github.com/flashwire/flashwire/internal/state"
	"github.com/flashwire/flashwire/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Local development keeps REDIS_URL and the API key in a .env file.
	_ = godotenv.Load()

	slog.Info("flashwire-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"feed_source", cfg.Feed.Source,
		"store_backend", cfg.Store.Backend,
		"acceleration", cfg.Replay.Acceleration,
		"breaking_ttl", cfg.Store.BreakingTTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := buildStore(cfg)
	if err != nil {
		slog.Error("failed to build state store", "err", err)
		os.Exit(1)
	}

	// Background TTL cleanup for breaking news and topic windows.
	go state.RunJanitor(ctx, st, cfg.Cleanup.Interval, nil)

	engine := scoring.NewEngine(st)
	if len(cfg.Notify.Webhooks) > 0 {
		notifier := notify.New(cfg.Notify)
		engine.SetOnBreaking(notifier.Notify)
	}
	replayer := replay.New(buildSource(cfg), st, engine, cfg.Replay.Acceleration)

	if cfg.Replay.AutoStartEnabled() {
		replayer.Start(ctx)
	}

	// Hot-reload: pacing changes apply without a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			replayer.SetAcceleration(updated.Replay.Acceleration)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub pushing the breaking-news list to connected clients.
	hub := ws.New(st, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, replayer, cfg.Server.Auth))
	httpMux.Handle("/ws/breaking", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("flashwire-server shutting down")
	replayer.Stop()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	if closer, ok := st.(interface{ Close() error }); ok {
		closer.Close() //nolint:errcheck
	}
}

// buildStore constructs the configured state backend. A Redis backend that
// cannot be reached is a fatal configuration error surfaced to the caller.
func buildStore(cfg *config.Config) (state.Store, error) {
	opts := state.Options{
		BreakingTTL:    cfg.Store.BreakingTTL,
		VelocityWindow: scoring.VelocityWindow,
	}
	switch cfg.Store.Backend {
	case "redis":
		url := cfg.Store.RedisURL()
		if url == "" {
			return nil, fmt.Errorf("store.backend is redis but %s is not set", cfg.Store.RedisURLEnv)
		}
		return state.NewRedis(url, opts)
	default:
		return state.NewMemory(opts), nil
	}
}

// buildSource constructs the configured feed source.
func buildSource(cfg *config.Config) feed.Source {
	if cfg.Feed.Source == "rss" {
		return feed.NewRSS(cfg.Feed.URL)
	}
	return feed.NewCSV(cfg.Feed.Path)
}
