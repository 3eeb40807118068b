package leave

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

var (
	ErrLeaveNotFound = fmt.Errorf("leave %w", appointment.ErrNotFound)
	ErrInvalidRange  = fmt.Errorf("%w: leave start date must not be after end date", appointment.ErrValidation)
	ErrStartInPast   = fmt.Errorf("%w: leave cannot start in the past", appointment.ErrConflict)
)

// DoctorLeave is an inclusive range of calendar days a doctor is away.
// StartDate and EndDate are civil dates held at midnight UTC.
type DoctorLeave struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// CivilDate truncates t to its calendar day in loc and returns that day at
// midnight UTC, the form leave dates are stored and compared in.
func CivilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
