package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/leave"
)

type BookAppointmentRequest struct {
	DoctorID    string  `json:"doctor_id" validate:"required"`
	PatientID   string  `json:"patient_id"`
	ScheduledAt string  `json:"scheduled_at" validate:"required,clinic_datetime"`
	Reason      *string `json:"reason" validate:"omitempty,max=500"`
}

type EmergencyBookingRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required"`
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason" validate:"required,max=500"`
}

type UpdateAppointmentRequest struct {
	ScheduledAt *string `json:"scheduled_at" validate:"omitempty,clinic_datetime"`
	Reason      *string `json:"reason" validate:"omitempty,max=500"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,status_token"`
}

type RescheduleRequest struct {
	ScheduledAt string `json:"scheduled_at" validate:"required,clinic_datetime"`
}

type CreateLeaveRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"max=500"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	Status          string    `json:"status"`
	Reason          *string   `json:"reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	StatusChangedAt time.Time `json:"status_changed_at"`
	StatusChangedBy string    `json:"status_changed_by"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		ScheduledAt:     a.ScheduledAt,
		Status:          string(a.Status),
		Reason:          a.Reason,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		StatusChangedAt: a.StatusChangedAt,
		StatusChangedBy: a.StatusChangedBy,
	}
}

type AppointmentListResponse struct {
	Items []AppointmentResponse `json:"items"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     string             `json:"date"`
	Slots    []appointment.Slot `json:"slots"`
	OnLeave  *bool              `json:"on_leave,omitempty"`
}

type LeaveResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toLeaveResponse(l *leave.DoctorLeave) LeaveResponse {
	return LeaveResponse{
		ID:        l.ID,
		DoctorID:  l.DoctorID,
		StartDate: l.StartDate.Format(time.DateOnly),
		EndDate:   l.EndDate.Format(time.DateOnly),
		Reason:    l.Reason,
		CreatedAt: l.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
