package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifyBookingCreated          NotificationKind = "booking_created"
	NotifyEmergencyBookingCreated NotificationKind = "emergency_booking_created"
	NotifyConfirmed               NotificationKind = "confirmed"
	NotifyScheduled               NotificationKind = "scheduled"
	NotifyStarted                 NotificationKind = "started"
	NotifyCompleted               NotificationKind = "completed"
	NotifyFeedbackRequested       NotificationKind = "feedback_requested"
	NotifyRescheduled             NotificationKind = "rescheduled"
	NotifyCancelled               NotificationKind = "cancelled"
)

type Notification struct {
	// ID identifies this notification across redeliveries.
	ID            uuid.UUID         `json:"id"`
	Kind          NotificationKind  `json:"kind"`
	AppointmentID uuid.UUID         `json:"appointment_id"`
	DoctorID      uuid.UUID         `json:"doctor_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	Status        AppointmentStatus `json:"status"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// Notifier delivers appointment events. Implementations must not block the
// caller on delivery and must not report delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// notificationsFor lists what a successful transition into status announces.
func notificationsFor(status AppointmentStatus) []NotificationKind {
	switch status {
	case StatusConfirmed:
		return []NotificationKind{NotifyConfirmed}
	case StatusScheduled:
		return []NotificationKind{NotifyScheduled}
	case StatusInProgress:
		return []NotificationKind{NotifyStarted}
	case StatusCompleted:
		return []NotificationKind{NotifyCompleted, NotifyFeedbackRequested}
	case StatusCancelledByPatient, StatusCancelledByDoctor:
		return []NotificationKind{NotifyCancelled}
	}
	return nil
}
