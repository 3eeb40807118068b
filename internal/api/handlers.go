package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

type AppointmentService interface {
	Location() *time.Location
	BookAppointment(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, reason *string) (*appointment.Appointment, error)
	BookEmergencyAppointment(ctx context.Context, doctorID, patientID uuid.UUID, reason string) (*appointment.Appointment, error)
	GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.Slot, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, target string, actor appointment.Actor) (*appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, newTime *time.Time, newReason *string, actor appointment.Actor) (*appointment.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newTime time.Time, actor appointment.Actor) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, actor appointment.Actor) (*appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
}

type appointmentHandler struct {
	svc AppointmentService
	log *zap.Logger
}

// bookingPatient resolves whom a booking is for. Patients book for themselves;
// other roles must name the patient.
func bookingPatient(w http.ResponseWriter, actor appointment.Actor, raw string) (uuid.UUID, bool) {
	if p, ok := actor.(appointment.PatientActor); ok {
		if raw == "" {
			return p.ID, true
		}
		id, ok := parseUUIDField(w, "patient_id", raw)
		if !ok {
			return uuid.Nil, false
		}
		if id != p.ID {
			writeError(w, http.StatusForbidden, appointment.KindUnauthorized, "patients can only book for themselves")
			return uuid.Nil, false
		}
		return id, true
	}
	if raw == "" {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, "patient_id is required")
		return uuid.Nil, false
	}
	return parseUUIDField(w, "patient_id", raw)
}

func (h *appointmentHandler) book(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req BookAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	doctorID, ok := parseUUIDField(w, "doctor_id", req.DoctorID)
	if !ok {
		return
	}
	patientID, ok := bookingPatient(w, actor, req.PatientID)
	if !ok {
		return
	}
	scheduledAt, err := parseDateTime(req.ScheduledAt, h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, err.Error())
		return
	}

	appt, err := h.svc.BookAppointment(r.Context(), doctorID, patientID, scheduledAt, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *appointmentHandler) bookEmergency(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req EmergencyBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	doctorID, ok := parseUUIDField(w, "doctor_id", req.DoctorID)
	if !ok {
		return
	}
	patientID, ok := bookingPatient(w, actor, req.PatientID)
	if !ok {
		return
	}

	appt, err := h.svc.BookEmergencyAppointment(r.Context(), doctorID, patientID, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *appointmentHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	patientRaw, doctorRaw := q.Get("patient_id"), q.Get("doctor_id")
	if (patientRaw == "") == (doctorRaw == "") {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, "exactly one of patient_id or doctor_id is required")
		return
	}

	var (
		appts []appointment.Appointment
		err   error
	)
	if patientRaw != "" {
		patientID, ok := parseUUIDField(w, "patient_id", patientRaw)
		if !ok {
			return
		}
		appts, err = h.svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
	} else {
		doctorID, ok := parseUUIDField(w, "doctor_id", doctorRaw)
		if !ok {
			return
		}
		appts, err = h.svc.ListAppointmentsByDoctor(r.Context(), doctorID, limit, offset)
	}
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	resp := AppointmentListResponse{Items: make([]AppointmentResponse, 0, len(appts))}
	for i := range appts {
		resp.Items = append(resp.Items, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *appointmentHandler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var newTime *time.Time
	if req.ScheduledAt != nil {
		t, err := parseDateTime(*req.ScheduledAt, h.svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, appointment.KindValidation, err.Error())
			return
		}
		newTime = &t
	}

	appt, err := h.svc.UpdateAppointment(r.Context(), id, newTime, req.Reason, actor)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	appt, err := h.svc.ChangeStatus(r.Context(), id, req.Status, actor)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req RescheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	newTime, err := parseDateTime(req.ScheduledAt, h.svc.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, err.Error())
		return
	}

	appt, err := h.svc.RescheduleAppointment(r.Context(), id, newTime, actor)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *appointmentHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteAppointment(r.Context(), id); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
