package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/leave"
)

type LeaveService interface {
	CreateLeave(ctx context.Context, actor appointment.Actor, start, end time.Time, reason string) (*leave.DoctorLeave, error)
	DeleteLeave(ctx context.Context, id uuid.UUID, actor appointment.Actor) error
	ListLeaves(ctx context.Context, doctorID uuid.UUID) ([]leave.DoctorLeave, error)
	IsDoctorOnLeave(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error)
}

// Availability is a doctor's free slots for a day together with their leave
// status. Slots are never filtered by leave.
type Availability struct {
	Slots   []appointment.Slot
	OnLeave bool
}

// DoctorAvailability asks the scheduler for free slots and the leave
// directory for leave, as two separate steps.
func DoctorAvailability(ctx context.Context, appts AppointmentService, leaves LeaveService, doctorID uuid.UUID, date time.Time) (Availability, error) {
	slots, err := appts.GetAvailableSlots(ctx, doctorID, date)
	if err != nil {
		return Availability{}, err
	}
	onLeave, err := leaves.IsDoctorOnLeave(ctx, doctorID, date)
	if err != nil {
		return Availability{}, err
	}
	return Availability{Slots: slots, OnLeave: onLeave}, nil
}

type doctorHandler struct {
	appts  AppointmentService
	leaves LeaveService
	log    *zap.Logger
}

func (h *doctorHandler) availableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"), h.appts.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, err.Error())
		return
	}
	includeLeave, _ := strconv.ParseBool(r.URL.Query().Get("include_leave"))

	resp := SlotsResponse{DoctorID: doctorID, Date: date.Format(time.DateOnly)}
	if includeLeave {
		avail, err := DoctorAvailability(r.Context(), h.appts, h.leaves, doctorID, date)
		if err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}
		resp.Slots = avail.Slots
		resp.OnLeave = &avail.OnLeave
	} else {
		slots, err := h.appts.GetAvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeServiceError(w, r, h.log, err)
			return
		}
		resp.Slots = slots
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *doctorHandler) createLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req CreateLeaveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	loc := h.appts.Location()
	start, err := parseDate(req.StartDate, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, err.Error())
		return
	}
	end, err := parseDate(req.EndDate, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.KindValidation, err.Error())
		return
	}

	l, err := h.leaves.CreateLeave(r.Context(), actor, start, end, req.Reason)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveResponse(l))
}

func (h *doctorHandler) listLeaves(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	leaves, err := h.leaves.ListLeaves(r.Context(), doctorID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	resp := make([]LeaveResponse, 0, len(leaves))
	for i := range leaves {
		resp = append(resp, toLeaveResponse(&leaves[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *doctorHandler) deleteLeave(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.leaves.DeleteLeave(r.Context(), id, actor); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
