package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sleepydirt/vision/internal/adapter/httpserver"
	"github.com/sleepydirt/vision/internal/adapter/inference"
	"github.com/sleepydirt/vision/internal/adapter/memory"
	"github.com/sleepydirt/vision/internal/adapter/metrics"
	"github.com/sleepydirt/vision/internal/adapter/redis"
	"github.com/sleepydirt/vision/internal/adapter/websocket"
	"github.com/sleepydirt/vision/internal/app"
	"github.com/sleepydirt/vision/internal/domain"
	"github.com/sleepydirt/vision/internal/platform/config"
	"github.com/sleepydirt/vision/internal/platform/logging"
	"github.com/sleepydirt/vision/internal/platform/version"
	"github.com/sleepydirt/vision/internal/session"
)

func setupConfig() *config.Server {
	cfg, err := config.LoadServer()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(ctx context.Context, cfg *config.Server, reg prometheus.Registerer) (domain.Store, *goredis.Client) {
	if cfg.StoreBackend == config.StoreMemory {
		slog.Warn("Using in-memory store, state will not survive a restart")
		return memory.NewStore(), nil
	}

	storeMetrics := metrics.NewStoreMetrics(reg)
	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(storeMetrics),
		redis.NewCircuitBreakerHook(storeMetrics),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewStore(client), client
}

func setupLoader(cfg *config.Server, clock clockwork.Clock) domain.ModelLoader {
	infCfg := inference.Config{
		ModelID:          cfg.ModelID,
		Prompt:           cfg.ModelPrompt,
		MaxNewTokens:     cfg.ModelMaxNewTokens,
		ImageSize:        cfg.ModelImageSize,
		Command:          cfg.InferenceCommand,
		Args:             cfg.InferenceArgv(),
		InferenceTimeout: cfg.InferenceTimeout,
	}

	if cfg.InferenceBackend == config.InferenceEcho {
		slog.Warn("Using echo inference backend")
		return inference.NewEchoLoader(infCfg)
	}

	loader, err := inference.NewExecLoader(infCfg, clock)
	if err != nil {
		slog.Error("Failed to create inference backend", "error", err)
		os.Exit(1)
	}
	return loader
}

func runGracefulShutdown(srv *httpserver.Server, sessions *session.Manager, hub *websocket.Hub, coord *app.Coordinator, stopLifecycle context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		stopLifecycle()

		// The model is released before the listener closes.
		sessions.Teardown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		coord.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()

	store, redisClient := setupStore(context.Background(), cfg, reg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	loader := setupLoader(cfg, clock)
	sessions := session.NewManager(loader, clock, cfg.ModelLoadTimeout, metrics.NewSessionMetrics(reg))

	hub := websocket.NewHub(clock, cfg.MaxWebSocketConnections, metrics.NewPushMetrics(reg))

	coord := app.NewCoordinator(sessions, store, hub, clock, domain.RetentionPolicy{
		TTL:           cfg.WorkItemRetention,
		SweepInterval: cfg.WorkItemSweepInterval,
	}, metrics.NewWorkMetrics(reg))

	lifecycleCtx, stopLifecycle := context.WithCancel(context.Background())
	lifecycle := app.NewLifecycle(coord, store)
	go func() {
		if err := lifecycle.Run(lifecycleCtx); err != nil {
			slog.Error("Lifecycle stopped", "error", err)
		}
	}()

	srv := httpserver.NewServer(cfg, clock, coord, hub,
		metrics.NewHTTPMetrics(reg),
		metrics.Handler(reg),
		[]httpserver.HealthCheck{{Name: "store", Check: store.Ping}},
	)

	done := runGracefulShutdown(srv, sessions, hub, coord, stopLifecycle)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
