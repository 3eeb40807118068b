package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
)

const (
	HeaderRequestID     = "X-Request-ID"
	HeaderActorID       = "X-Actor-ID"
	HeaderActorRole     = "X-Actor-Role"
	HeaderActorUsername = "X-Actor-Username"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs method, path, status, duration and request ID of every request.
func LoggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", GetRequestID(r.Context())),
			}
			if actor, ok := ActorFrom(r.Context()); ok {
				fields = append(fields, zap.String("actor_id", actor.ActorID().String()))
			}

			if wrapped.statusCode >= http.StatusInternalServerError {
				log.Error("http request", fields...)
				return
			}
			log.Info("http request", fields...)
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// actorHeaders is the identity forwarded by the gateway.
type actorHeaders struct {
	ID       string `validate:"required"`
	Role     string `validate:"required,actor_role"`
	Username string `validate:"required,max=100"`
}

// ActorMiddleware builds the acting identity from the gateway headers and
// rejects requests without one.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := actorHeaders{
			ID:       r.Header.Get(HeaderActorID),
			Role:     r.Header.Get(HeaderActorRole),
			Username: r.Header.Get(HeaderActorUsername),
		}
		id, err := uuid.Parse(h.ID)
		if err != nil || validate.Struct(h) != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid actor headers")
			return
		}
		role, _ := directory.ParseRole(h.Role)

		var actor appointment.Actor
		switch role {
		case directory.RoleDoctor:
			actor = appointment.DoctorActor{ID: id, Username: h.Username}
		case directory.RolePatient:
			actor = appointment.PatientActor{ID: id, Username: h.Username}
		case directory.RoleAdmin:
			actor = appointment.AdminActor{ID: id, Username: h.Username}
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly must run after ActorMiddleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		if _, ok := actor.(appointment.AdminActor); !ok {
			writeError(w, http.StatusForbidden, appointment.KindUnauthorized, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ActorFrom(ctx context.Context) (appointment.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(appointment.Actor)
	return actor, ok
}
