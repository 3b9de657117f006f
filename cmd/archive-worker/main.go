package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
	"github.com/hackgods/gaci-appointment-queue/internal/bootstrap"
	"github.com/hackgods/gaci-appointment-queue/internal/config"
	"github.com/hackgods/gaci-appointment-queue/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.Env).With().Str("service", "archive-worker").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Str("store", cfg.StoreBackend).
		Msg("archive-worker starting up")

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

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping archive worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.ArchivePastDue(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("archive run error")
		return
	}
	logger.Info().Int("archived", n).Dur("took", time.Since(start)).Msg("archive run complete")
}
