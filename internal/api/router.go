package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/booking"
	"github.com/hackgods/doctor-appointment-scheduling/internal/user"
)

type RouterConfig struct {
	Users        *user.Service
	Availability *availability.Service
	Booking      *booking.Service
	Tokens       *auth.Tokens
	Checkers     map[string]Checker
	Logger       zerolog.Logger
	RateLimitRPS float64 // 0 disables rate limiting
	RateBurst    int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateBurst))
	}

	health := NewHealthHandler(cfg.Checkers, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/auth", authenticateHandler(cfg.Users))
	r.Post("/auth/new", registerHandler(cfg.Users))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		r.Get("/users/me", meHandler(cfg.Users))
		r.Get("/users/doctors", listDoctorsHandler(cfg.Users))

		r.Route("/availability", func(r chi.Router) {
			r.Get("/doctor/{doctorId}", listDoctorAvailabilityHandler(cfg.Availability))
			r.Get("/slots", listFreeSlotsHandler(cfg.Availability))

			r.Group(func(r chi.Router) {
				r.Use(RequireRole(auth.RoleDoctor))
				r.Post("/", createAvailabilityHandler(cfg.Availability))
				r.Get("/my", listOwnAvailabilityHandler(cfg.Availability))
				r.Put("/{id}", updateAvailabilityHandler(cfg.Availability))
				r.Delete("/{id}", deleteAvailabilityHandler(cfg.Availability))
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", createScheduleHandler(cfg.Booking))
			r.Get("/my", listOwnSchedulesHandler(cfg.Booking))
			r.Get("/{id}", getScheduleHandler(cfg.Booking))
			r.Put("/{id}/cancel", cancelScheduleHandler(cfg.Booking))
			r.With(RequireRole(auth.RoleDoctor)).Put("/{id}/complete", completeScheduleHandler(cfg.Booking))
		})
	})

	return r
}
