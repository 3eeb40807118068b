package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var kindStatus = map[string]int{
	appointment.KindNotFound:               http.StatusNotFound,
	appointment.KindConflict:               http.StatusConflict,
	appointment.KindInvalidStateTransition: http.StatusConflict,
	appointment.KindUnauthorized:           http.StatusForbidden,
	appointment.KindValidation:             http.StatusBadRequest,
}

// writeServiceError maps a scheduler error to its HTTP status by kind.
// Errors of no known kind are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	kind := appointment.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, appointment.KindInternal, "internal server error")
		return
	}
	writeError(w, status, kind, err.Error())
}

// decodeAndValidate reads a JSON body into dst and runs the struct validators.
// It writes the 400 response itself and reports whether the handler may go on.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, validationDetails(err))
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDField(w http.ResponseWriter, field, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
