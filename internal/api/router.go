package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Appointments AppointmentService
	Leaves       LeaveService
	Health       *HealthHandler
	Log          *zap.Logger

	AllowedOrigins     []string
	RateLimitPerMinute int // 0 disables rate limiting
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderRequestID, HeaderActorID, HeaderActorRole, HeaderActorUsername},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         300,
	}))

	// Health endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	appts := &appointmentHandler{svc: cfg.Appointments, log: cfg.Log}
	doctors := &doctorHandler{appts: cfg.Appointments, leaves: cfg.Leaves, log: cfg.Log}

	r.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}
		r.Use(ActorMiddleware)

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", appts.book)
			r.Post("/emergency", appts.bookEmergency)
			r.Get("/", appts.list)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", appts.get)
				r.Put("/", appts.update)
				r.Put("/status", appts.changeStatus)
				r.Put("/reschedule", appts.reschedule)
				r.Delete("/cancel", appts.cancel)
				r.With(AdminOnly).Delete("/", appts.delete)
			})
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Post("/me/leaves", doctors.createLeave)
			r.Get("/{id}/available-slots", doctors.availableSlots)
			r.Get("/{id}/leaves", doctors.listLeaves)
		})

		r.Delete("/leaves/{id}", doctors.deleteLeave)
	})

	return r
}
