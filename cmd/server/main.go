package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/config"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/handlers"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/services"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/upstream"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/websocket"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.RealClock{}
	api := upstream.NewClientFromConfig(cfg, log)

	// The registry lives for the whole process; it is not per-request state.
	registry, closeRegistry, err := newRegistry(ctx, cfg, clk, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize presence registry")
	}
	defer closeRegistry()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	notifier := services.NewCleanupNotifier(api, hub, cfg.UpstreamServiceToken, clk, log)
	sweeper := services.NewSweeper(registry, notifier, clk, cfg.SweepInterval, cfg.HeartbeatTimeout, log)
	go sweeper.Start(ctx)

	gate := services.NewAvailabilityGate(api, log)
	reaper := services.NewStoryReaper(api, clk, cfg.UpstreamTimeout, log)

	router := handlers.NewRouter(handlers.RouterDeps{
		CORSOrigins:  cfg.CORSOrigins,
		Presence:     handlers.NewPresenceHandler(registry, clk, log),
		Availability: handlers.NewAvailabilityHandler(gate, log),
		Stories:      handlers.NewStoryHandler(reaper, log),
		WebSocket:    websocket.NewHandler(hub).ServeWS,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"presence": cfg.PresenceBackend,
			"origins":  cfg.CORSOrigins,
		}).Info("presence backend starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	sweeper.Stop()
	reaper.Close()
}

// newRegistry builds the configured heartbeat registry and its cleanup func.
func newRegistry(ctx context.Context, cfg *config.Config, clk clock.PassiveClock, log logrus.FieldLogger) (services.Registry, func(), error) {
	switch cfg.PresenceBackend {
	case "", "memory":
		return services.NewMemoryRegistry(clk), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("failed to close redis client")
			}
		}
		return services.NewRedisRegistry(client, cfg.RedisKeyPrefix, clk, log), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown presence backend %q", cfg.PresenceBackend)
	}
}
