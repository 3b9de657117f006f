package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
	"github.com/hackgods/gaci-appointment-queue/internal/bootstrap"
	"github.com/hackgods/gaci-appointment-queue/internal/config"
	"github.com/hackgods/gaci-appointment-queue/internal/logging"
)

var otherCities = []string{"Arinos", "Unaí", "Formoso", "Uruana de Minas"}

func main() {
	count := flag.Int("count", 60, "number of waiting-list entries to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env).With().Str("service", "seed").Logger()
	logger.Info().Int("count", *count).Str("store", cfg.StoreBackend).Msg("seed starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage backend error")
	}
	defer backend.Close()

	gofakeit.Seed(time.Now().UnixNano())

	// Backdate creation so the list spans the whole 30 day window.
	var createdAt time.Time
	svc := appointment.NewService(backend.Repo, backend.Settings, backend.Locker,
		appointment.WithLocation(cfg.Location),
		appointment.WithLogger(logger),
		appointment.WithClock(func() time.Time { return createdAt }),
	)
	ctx = appointment.WithActor(ctx, "seed")

	if err := seedWaitingList(ctx, svc, *count, &createdAt); err != nil {
		logger.Fatal().Err(err).Msg("seed waiting list")
	}

	logger.Info().Msg("seed complete")
}

func seedWaitingList(ctx context.Context, svc *appointment.Service, count int, createdAt *time.Time) error {
	now := time.Now()

	for i := 0; i < count; i++ {
		city := appointment.DefaultCity
		if gofakeit.Number(1, 5) == 1 {
			city = gofakeit.RandomString(otherCities)
		}

		in := appointment.Intake{
			FullName:       gofakeit.Name(),
			PrimaryContact: gofakeit.Phone(),
			Address:        gofakeit.Street(),
			City:           city,
			IsPriority:     gofakeit.Number(1, 10) == 1,
		}
		if gofakeit.Bool() {
			in.SecondaryContact = gofakeit.Phone()
		}

		*createdAt = now.Add(-time.Duration(gofakeit.Number(0, 29*24)) * time.Hour)
		if _, err := svc.CreateAppointment(ctx, in); err != nil {
			return err
		}
	}

	return nil
}
