package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/gaci-appointment-queue/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	Checks  map[string]Check
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	svc := cfg.Service

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(OperatorMiddleware)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/search", searchHandler(svc))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(svc))
			r.Put("/", editAppointmentHandler(svc))
			r.Delete("/", deleteAppointmentHandler(svc))
			r.Post("/confirm", confirmAppointmentHandler(svc))
			r.Post("/revert", transitionHandler(svc.RevertToWaiting))
			r.Post("/archive", transitionHandler(svc.ArchiveAppointment))
			r.Post("/postpone", transitionHandler(svc.Postpone))
			r.Post("/priority", transitionHandler(svc.TogglePriority))
			r.Post("/attendance", attendanceHandler(svc))
		})
	})

	r.Get("/waiting-list", waitingListHandler(svc))
	r.Get("/agenda", agendaHandler(svc))
	r.Get("/archived", archivedHandler(svc))
	r.Get("/other-cities", otherCitiesHandler(svc))
	r.Get("/calendar/{date}", calendarHandler(svc))

	r.Get("/settings", getSettingsHandler(svc))
	r.Put("/settings/daily-limit", setDailyLimitHandler(svc))
	r.Post("/sweep", sweepHandler(svc))

	return r
}
