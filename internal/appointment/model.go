package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusBooked             AppointmentStatus = "BOOKED"
	StatusConfirmed          AppointmentStatus = "CONFIRMED"
	StatusScheduled          AppointmentStatus = "SCHEDULED"
	StatusInProgress         AppointmentStatus = "IN_PROGRESS"
	StatusCompleted          AppointmentStatus = "COMPLETED"
	StatusCancelledByPatient AppointmentStatus = "CANCELLED_BY_PATIENT"
	StatusCancelledByDoctor  AppointmentStatus = "CANCELLED_BY_DOCTOR"

	// StatusCancelled is only ever a requested target. It is remapped to one of
	// the actor-specific cancellation states before anything is stored.
	StatusCancelled AppointmentStatus = "CANCELLED"
)

var allStatuses = []AppointmentStatus{
	StatusBooked,
	StatusConfirmed,
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusCancelledByPatient,
	StatusCancelledByDoctor,
	StatusCancelled,
}

// ParseStatus accepts a status token case-insensitively.
func ParseStatus(raw string) (AppointmentStatus, error) {
	token := AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range allStatuses {
		if s == token {
			return s, nil
		}
	}
	return "", validationErrorf("unknown appointment status %q", raw)
}

// IsTerminal reports whether no further transition may leave s.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelledByPatient, StatusCancelledByDoctor:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in s blocks its slot.
func (s AppointmentStatus) OccupiesSlot() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusScheduled, StatusInProgress:
		return true
	}
	return false
}

// SystemActorName is recorded as StatusChangedBy for transitions nobody requested.
const SystemActorName = "SYSTEM"

// EmergencyReasonPrefix marks emergency bookings for downstream consumers.
const EmergencyReasonPrefix = "EMERGENCY: "

type Appointment struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	PatientID       uuid.UUID
	ScheduledAt     time.Time
	Status          AppointmentStatus
	Reason          *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusChangedAt time.Time
	StatusChangedBy string
}

// transition records a status change with its audit fields.
func (a *Appointment) transition(to AppointmentStatus, by string, now time.Time) {
	a.Status = to
	a.StatusChangedAt = now
	a.StatusChangedBy = by
	a.UpdatedAt = now
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
