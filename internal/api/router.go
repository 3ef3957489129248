package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hackgods/blood-donation-scheduling/internal/appointment"
	"github.com/hackgods/blood-donation-scheduling/internal/assignment"
	"github.com/hackgods/blood-donation-scheduling/internal/auth"
	"github.com/hackgods/blood-donation-scheduling/internal/obs"
	"github.com/hackgods/blood-donation-scheduling/internal/stats"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Assignments  *assignment.Service
	Stats        *stats.Service
	Tokens       *auth.Tokens
	Roles        auth.RoleStore
	Logger       *zap.Logger

	Postgres Pinger
	Redis    Pinger

	Env     string
	Version string

	RateLimitRPS   int
	RateLimitBurst int
}

type server struct {
	appointments *appointment.Service
	assignments  *assignment.Service
	stats        *stats.Service
	tokens       *auth.Tokens
	roles        auth.RoleStore
	logger       *zap.Logger
	validate     *validator.Validate
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		appointments: cfg.Appointments,
		assignments:  cfg.Assignments,
		stats:        cfg.Stats,
		tokens:       cfg.Tokens,
		roles:        cfg.Roles,
		logger:       logger,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	if cfg.Env == "dev" {
		r.Post("/auth/token", s.issueToken)
	}

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Tokens, cfg.Roles, logger))

		r.Get("/hospitals", s.listHospitals)
		r.Get("/hospitals/{id}/time-windows", s.listTimeWindows)

		r.Route("/donor", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleDonor))
			r.Post("/appointments", s.scheduleAppointment)
			r.Get("/appointments/current", s.currentAppointment)
			r.Get("/appointments/history", s.appointmentHistory)
			r.Post("/appointments/{id}/cancel", s.cancelAppointment)
			r.Get("/eligibility", s.eligibility)
		})

		r.Route("/agent", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAgent))
			r.Use(s.ResolveAgentHospital)
			r.Get("/hospital", s.agentHospital)
			r.Put("/hospital/active", s.setHospitalActive)
			r.Get("/inventory", s.inventory)
			r.Get("/appointments", s.hospitalAppointments)
			r.Post("/appointments/{id}/complete", s.completeDonation)
			r.Post("/appointments/{id}/status", s.setAppointmentStatus)
			r.Get("/donations", s.hospitalDonations)
			r.Post("/donation-requests", s.requestDonors)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(auth.RoleAdmin))
			r.Get("/stats", s.dashboard)
			r.Get("/agents", s.listAgents)
			r.Post("/assignments", s.assignAgent)
			r.Delete("/assignments/{agentId}", s.unassignAgent)
		})
	})

	return r
}
