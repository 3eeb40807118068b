package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
	redisclient "github.com/clinicdesk/appointment-scheduling/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentUpdated       = "APPOINTMENT_UPDATED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
)

// ConflictWindow is how close two BOOKED appointments of one doctor may be.
// Both ends of the window are inclusive.
const ConflictWindow = time.Hour

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Service struct {
	repo     Repository
	dir      Directory
	locker   redisclient.Locker
	notifier Notifier
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo Repository, dir Directory, locker redisclient.Locker, notifier Notifier, cfg config.Config, log *zap.Logger) *Service {
	loc := cfg.ClinicLocation
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		locker:   locker,
		notifier: notifier,
		loc:      loc,
		log:      log,
		now:      time.Now,
	}
}

// Location is the clinic time zone appointment times are expressed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// BookAppointment creates a BOOKED appointment for a future time.
// The conflict check and the insert run under the doctor's schedule lock so
// concurrent bookings for the same doctor cannot both pass the check.
func (s *Service) BookAppointment(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, reason *string) (*Appointment, error) {
	if err := s.checkParticipants(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	if !scheduledAt.After(s.clock()) {
		return nil, ErrTimeNotInFuture
	}
	return s.book(ctx, doctorID, patientID, scheduledAt.In(s.loc), reason, NotifyBookingCreated)
}

// BookEmergencyAppointment books the doctor for right now.
func (s *Service) BookEmergencyAppointment(ctx context.Context, doctorID, patientID uuid.UUID, reason string) (*Appointment, error) {
	if err := s.checkParticipants(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	marked := EmergencyReasonPrefix + strings.TrimSpace(reason)
	return s.book(ctx, doctorID, patientID, s.clock(), &marked, NotifyEmergencyBookingCreated)
}

func (s *Service) book(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, reason *string, kind NotificationKind) (*Appointment, error) {
	var created *Appointment

	err := s.withDoctorSchedule(ctx, doctorID, func(lockCtx context.Context, tx TxRepository) error {
		if err := checkConflict(lockCtx, tx, doctorID, at, uuid.Nil); err != nil {
			return err
		}

		now := s.clock()
		appt := &Appointment{
			ID:              uuid.New(),
			DoctorID:        doctorID,
			PatientID:       patientID,
			ScheduledAt:     at,
			Status:          StatusBooked,
			Reason:          reason,
			CreatedAt:       now,
			UpdatedAt:       now,
			StatusChangedAt: now,
			StatusChangedBy: SystemActorName,
		}
		if err := tx.InsertAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return s.logEvent(lockCtx, tx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":    doctorID.String(),
			"patient_id":   patientID.String(),
			"scheduled_at": at,
			"kind":         kind,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, kind, created)
	return created, nil
}

// GetAvailableSlots returns the doctor's free template slots on date.
// Leave is deliberately not consulted here; callers that care ask the leave
// directory separately.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	if _, err := s.lookup(ctx, s.dir.FindByID, doctorID, directory.RoleDoctor, ErrDoctorNotFound); err != nil {
		return nil, err
	}

	from, to := dayBounds(date, s.loc)
	appts, err := s.repo.ListByDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments for %s: %w", from.Format(time.DateOnly), err)
	}
	return freeSlots(appts, s.loc), nil
}

// ChangeStatus moves an appointment to the requested status on behalf of actor.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, target string, actor Actor) (*Appointment, error) {
	requested, err := ParseStatus(target)
	if err != nil {
		return nil, err
	}

	// Re-entering BOOKED makes the appointment count for conflicts again, so
	// it needs the doctor's schedule lock like a new booking.
	var schedule uuid.UUID
	if requested == StatusBooked {
		current, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, err
		}
		schedule = current.DoctorID
	}

	var (
		result  *Appointment
		changed bool
	)
	err = s.withAppointmentOn(ctx, id, schedule, func(lockCtx context.Context, tx TxRepository, appt *Appointment) error {
		to, err := resolveTarget(actor, appt, requested)
		if err != nil {
			return err
		}
		if appt.Status == to {
			result = appt
			return nil
		}
		if !CanChangeStatus(appt.Status, to) {
			return transitionErrorf("cannot change status from %s to %s", appt.Status, to)
		}
		if to == StatusBooked {
			if err := checkConflict(lockCtx, tx, appt.DoctorID, appt.ScheduledAt, appt.ID); err != nil {
				return err
			}
		}

		from := appt.Status
		appt.transition(to, actor.ActorName(), s.clock())
		if err := tx.UpdateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("update appointment status: %w", err)
		}

		result, changed = appt, true
		return s.logEvent(lockCtx, tx, appt.ID, EventAppointmentStatusChanged, map[string]any{
			"from": from,
			"to":   to,
			"by":   actor.ActorName(),
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		for _, kind := range notificationsFor(result.Status) {
			s.notify(ctx, kind, result)
		}
	}
	return result, nil
}

// UpdateAppointment changes time and/or reason of the patient's own BOOKED appointment.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, newTime *time.Time, newReason *string, actor Actor) (*Appointment, error) {
	if newTime == nil && newReason == nil {
		return nil, validationErrorf("nothing to update")
	}

	return s.modifyBooked(ctx, id, actor, EventAppointmentUpdated, func(lockCtx context.Context, tx TxRepository, appt *Appointment) error {
		if newTime != nil && !newTime.Equal(appt.ScheduledAt) {
			at := newTime.In(s.loc)
			if err := checkConflict(lockCtx, tx, appt.DoctorID, at, appt.ID); err != nil {
				return err
			}
			appt.ScheduledAt = at
		}
		if newReason != nil {
			appt.Reason = newReason
		}
		return nil
	})
}

// RescheduleAppointment moves the patient's own BOOKED appointment to a new future time.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newTime time.Time, actor Actor) (*Appointment, error) {
	appt, err := s.modifyBooked(ctx, id, actor, EventAppointmentRescheduled, func(lockCtx context.Context, tx TxRepository, appt *Appointment) error {
		if !newTime.After(s.clock()) {
			return ErrTimeNotInFuture
		}
		at := newTime.In(s.loc)
		if err := checkConflict(lockCtx, tx, appt.DoctorID, at, appt.ID); err != nil {
			return err
		}
		appt.ScheduledAt = at
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyRescheduled, appt)
	return appt, nil
}

// modifyBooked runs edit against the actor's own BOOKED appointment under the
// doctor's schedule lock and persists the result.
func (s *Service) modifyBooked(ctx context.Context, id uuid.UUID, actor Actor, event string, edit func(ctx context.Context, tx TxRepository, appt *Appointment) error) (*Appointment, error) {
	patient, ok := actor.(PatientActor)
	if !ok {
		return nil, ErrActorNotPermit
	}

	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.withDoctorSchedule(ctx, current.DoctorID, func(lockCtx context.Context, tx TxRepository) error {
		appt, err := tx.GetAppointmentForUpdate(lockCtx, id)
		if err != nil {
			return err
		}
		if appt.PatientID != patient.ID {
			return ErrNotOwner
		}
		if appt.Status != StatusBooked {
			return ErrNotEditable
		}

		previous := appt.ScheduledAt
		if err := edit(lockCtx, tx, appt); err != nil {
			return err
		}
		appt.UpdatedAt = s.clock()

		if err := tx.UpdateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}

		updated = appt
		return s.logEvent(lockCtx, tx, appt.ID, event, map[string]any{
			"previous_scheduled_at": previous,
			"scheduled_at":          appt.ScheduledAt,
			"by":                    patient.Username,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelAppointment cancels the patient's own BOOKED or CONFIRMED appointment.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	patient, ok := actor.(PatientActor)
	if !ok {
		return nil, ErrActorNotPermit
	}

	var cancelled *Appointment
	err := s.withAppointment(ctx, id, func(lockCtx context.Context, tx TxRepository, appt *Appointment) error {
		if appt.PatientID != patient.ID {
			return ErrNotOwner
		}
		if appt.Status != StatusBooked && appt.Status != StatusConfirmed {
			return transitionErrorf("only BOOKED or CONFIRMED appointments can be cancelled, status is %s", appt.Status)
		}

		from := appt.Status
		appt.transition(StatusCancelledByPatient, patient.Username, s.clock())
		if err := tx.UpdateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		cancelled = appt
		return s.logEvent(lockCtx, tx, appt.ID, EventAppointmentStatusChanged, map[string]any{
			"from": from,
			"to":   StatusCancelledByPatient,
			"by":   patient.Username,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, NotifyCancelled, cancelled)
	return cancelled, nil
}

// DeleteAppointment is the administrative hard delete. It skips the state
// machine and ownership checks and sends no notification.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	return s.withAppointment(ctx, id, func(lockCtx context.Context, tx TxRepository, appt *Appointment) error {
		if err := tx.DeleteAppointment(lockCtx, appt.ID); err != nil {
			return fmt.Errorf("delete appointment: %w", err)
		}
		return s.logEvent(lockCtx, tx, appt.ID, EventAppointmentDeleted, map[string]any{
			"doctor_id":    appt.DoctorID.String(),
			"patient_id":   appt.PatientID.String(),
			"status":       appt.Status,
			"scheduled_at": appt.ScheduledAt,
		})
	})
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// ListAppointmentsByDoctor retrieves appointments for a specific doctor
func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// checkParticipants reads both accounts uncached so a just-deactivated account
// cannot be booked.
func (s *Service) checkParticipants(ctx context.Context, doctorID, patientID uuid.UUID) error {
	doctor, err := s.lookup(ctx, s.dir.FindCurrent, doctorID, directory.RoleDoctor, ErrDoctorNotFound)
	if err != nil {
		return err
	}
	if !doctor.IsActive {
		return ErrDoctorInactive
	}

	patient, err := s.lookup(ctx, s.dir.FindCurrent, patientID, directory.RolePatient, ErrPatientNotFound)
	if err != nil {
		return err
	}
	if !patient.IsActive {
		return ErrPatientInactive
	}
	return nil
}

// lookup loads an account and treats a role mismatch the same as absence.
func (s *Service) lookup(ctx context.Context, find func(context.Context, uuid.UUID) (*directory.Account, error), id uuid.UUID, role directory.Role, notFound error) (*directory.Account, error) {
	acc, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrAccountNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	if acc.Role != role {
		return nil, notFound
	}
	return acc, nil
}

func checkConflict(ctx context.Context, tx TxRepository, doctorID uuid.UUID, at time.Time, exclude uuid.UUID) error {
	clashes, err := tx.FindBookedBetween(ctx, doctorID, at.Add(-ConflictWindow), at.Add(ConflictWindow), exclude)
	if err != nil {
		return fmt.Errorf("check conflicting appointments: %w", err)
	}
	if len(clashes) > 0 {
		return ErrTimeConflict
	}
	return nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

// withDoctorSchedule holds the doctor's distributed lock and, inside the
// transaction, the matching database lock.
func (s *Service) withDoctorSchedule(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository) error) error {
	return s.withLock(ctx, redisclient.DoctorScheduleKey(doctorID), func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx TxRepository) error {
			if err := tx.LockDoctorSchedule(lockCtx, doctorID); err != nil {
				return fmt.Errorf("lock doctor schedule: %w", err)
			}
			return fn(lockCtx, tx)
		})
	})
}

// withAppointment serializes writes to one appointment and hands fn the row
// read under FOR UPDATE.
func (s *Service) withAppointment(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, tx TxRepository, appt *Appointment) error) error {
	return s.withAppointmentOn(ctx, id, uuid.Nil, fn)
}

// withAppointmentOn is withAppointment that, when doctorID is set, also takes
// the doctor's schedule lock. The schedule is locked before the row, in the
// same order modifyBooked uses.
func (s *Service) withAppointmentOn(ctx context.Context, id, doctorID uuid.UUID, fn func(ctx context.Context, tx TxRepository, appt *Appointment) error) error {
	return s.withLock(ctx, redisclient.AppointmentKey(id), func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx TxRepository) error {
			if doctorID != uuid.Nil {
				if err := tx.LockDoctorSchedule(lockCtx, doctorID); err != nil {
					return fmt.Errorf("lock doctor schedule: %w", err)
				}
			}
			appt, err := tx.GetAppointmentForUpdate(lockCtx, id)
			if err != nil {
				return err
			}
			return fn(lockCtx, tx, appt)
		})
	})
}

func (s *Service) notify(ctx context.Context, kind NotificationKind, appt *Appointment) {
	s.notifier.Notify(context.WithoutCancel(ctx), Notification{
		ID:            uuid.New(),
		Kind:          kind,
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		Status:        appt.Status,
		ScheduledAt:   appt.ScheduledAt,
		OccurredAt:    s.clock(),
	})
}

func (s *Service) logEvent(ctx context.Context, tx TxRepository, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock(),
	}

	if err := tx.InsertEvent(ctx, ev); err != nil {
		return fmt.Errorf("insert event log %s: %w", eventType, err)
	}
	return nil
}
