package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/gaci-appointment-queue/internal/api"
	"github.com/hackgods/gaci-appointment-queue/internal/bootstrap"
	"github.com/hackgods/gaci-appointment-queue/internal/config"
	"github.com/hackgods/gaci-appointment-queue/internal/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env).With().Str("service", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("lock", cfg.LockBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(rootCtx, 10*time.Second)
	backend, err := bootstrap.Open(openCtx, cfg, logger)
	cancelOpen()
	if err != nil {
		logger.Fatal().Err(err).Msg("storage backend error")
	}
	defer backend.Close()

	svc := backend.Service(cfg)

	// Session start: archive anything whose day has already passed.
	sweepCtx, cancelSweep := context.WithTimeout(rootCtx, 20*time.Second)
	if n, err := svc.ArchivePastDue(sweepCtx); err != nil {
		logger.Error().Err(err).Msg("startup archival sweep failed")
	} else {
		logger.Info().Int("archived", n).Msg("startup archival sweep done")
	}
	cancelSweep()

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: svc,
			Checks:  backend.Checks,
			Logger:  logger,
			Env:     cfg.Env,
			Version: version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}
