// Command profile-worker consumes identity.created events and materializes
// profiles when the API runs with PROFILE_MODE=trigger.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	usersrepo "github.com/zenGate-Global/palmyra-tenancy/domains/users/be/repo"
	"github.com/zenGate-Global/palmyra-tenancy/domains/users/be/worker"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/events"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/metrics"
	"github.com/zenGate-Global/palmyra-tenancy/platform/go/persistence"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3001"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	NATSURL         string        `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	Queue           string        `env:"PROFILE_WORKER_QUEUE" envDefault:"profile-workers"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "profile-worker",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL, ApplicationName: "palmyra-profile-worker"})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	profileStore, err := persistence.NewProfileStore(pool)
	if err != nil {
		logger.Fatal("init profile store", zap.Error(err))
	}

	appMetrics := metrics.New()
	profileWorker := worker.New(usersrepo.NewPostgresRepository(profileStore), appMetrics, logger)

	bus, err := events.Connect(cfg.NATSURL, "palmyra-profile-worker", logger)
	if err != nil {
		logger.Fatal("connect nats", zap.Error(err))
	}
	defer func() {
		_ = bus.Close()
	}()

	if _, err := bus.SubscribeIdentityCreated(ctx, cfg.Queue, profileWorker.Handle); err != nil {
		logger.Fatal("subscribe identity.created", zap.Error(err))
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !bus.Connected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", appMetrics.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("profile worker listening", zap.String("port", cfg.Port), zap.String("queue", cfg.Queue))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
