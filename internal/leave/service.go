package leave

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
)

type Service struct {
	repo Repository
	loc  *time.Location
	log  *zap.Logger
	now  func() time.Time
}

func NewService(repo Repository, cfg config.Config, log *zap.Logger) *Service {
	loc := cfg.ClinicLocation
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc, log: log, now: time.Now}
}

// CreateLeave records a leave for the calling doctor. Dates are reduced to
// calendar days in the clinic time zone.
func (s *Service) CreateLeave(ctx context.Context, actor appointment.Actor, start, end time.Time, reason string) (*DoctorLeave, error) {
	doctor, ok := actor.(appointment.DoctorActor)
	if !ok {
		return nil, appointment.ErrActorNotPermit
	}

	startDay, endDay := CivilDate(start, s.loc), CivilDate(end, s.loc)
	if startDay.After(endDay) {
		return nil, ErrInvalidRange
	}
	now := s.now()
	if startDay.Before(CivilDate(now, s.loc)) {
		return nil, ErrStartInPast
	}

	l := &DoctorLeave{
		ID:        uuid.New(),
		DoctorID:  doctor.ID,
		StartDate: startDay,
		EndDate:   endDay,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: now,
	}
	if err := s.repo.InsertLeave(ctx, l); err != nil {
		return nil, fmt.Errorf("insert leave: %w", err)
	}

	s.log.Info("doctor leave created",
		zap.String("leave_id", l.ID.String()),
		zap.String("doctor_id", doctor.ID.String()),
		zap.String("start", l.StartDate.Format(time.DateOnly)),
		zap.String("end", l.EndDate.Format(time.DateOnly)),
	)
	return l, nil
}

// DeleteLeave removes a leave. Only the doctor it belongs to may delete it.
func (s *Service) DeleteLeave(ctx context.Context, id uuid.UUID, actor appointment.Actor) error {
	l, err := s.repo.GetLeaveByID(ctx, id)
	if err != nil {
		return err
	}
	doctor, ok := actor.(appointment.DoctorActor)
	if !ok || doctor.ID != l.DoctorID {
		return appointment.ErrNotOwner
	}
	return s.repo.DeleteLeave(ctx, id)
}

func (s *Service) ListLeaves(ctx context.Context, doctorID uuid.UUID) ([]DoctorLeave, error) {
	leaves, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, nil
}

// IsDoctorOnLeave reports whether the doctor has a leave covering date's
// calendar day in the clinic time zone.
func (s *Service) IsDoctorOnLeave(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error) {
	onLeave, err := s.repo.CoversDay(ctx, doctorID, CivilDate(date, s.loc))
	if err != nil {
		return false, fmt.Errorf("check leave: %w", err)
	}
	return onLeave, nil
}
