package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-scheduling/internal/directory"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Appointments of a doctor with ScheduledAt in [from, to), any status.
	ListByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)

	// WithTx runs fn in one transaction; fn's error rolls it back.
	WithTx(ctx context.Context, fn func(tx TxRepository) error) error
}

// TxRepository is the transactional view used for every write.
type TxRepository interface {
	// Serializes schedule changes of one doctor until the transaction ends.
	LockDoctorSchedule(ctx context.Context, doctorID uuid.UUID) error
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks: BOOKED appointments with ScheduledAt in [from, to].
	FindBookedBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]Appointment, error)

	InsertAppointment(ctx context.Context, a *Appointment) error
	UpdateAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Directory is the doctor/patient lookup owned by the user directory.
// FindByID may serve a cached copy; FindCurrent must not.
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*directory.Account, error)
	FindCurrent(ctx context.Context, id uuid.UUID) (*directory.Account, error)
}
