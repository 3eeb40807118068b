package appointment

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the scheduler wraps exactly one of these,
// so callers can branch with errors.Is on the kind or on the specific error.
var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStateTransition = errors.New("invalid status transition")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrValidation             = errors.New("validation error")
)

var (
	ErrDoctorNotFound      = fmt.Errorf("doctor %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)

	ErrDoctorInactive  = fmt.Errorf("%w: doctor is not accepting appointments", ErrConflict)
	ErrPatientInactive = fmt.Errorf("%w: patient account is inactive", ErrConflict)
	ErrTimeConflict    = fmt.Errorf("%w: doctor already has a booked appointment within one hour of the requested time", ErrConflict)
	ErrTimeNotInFuture = fmt.Errorf("%w: appointment time must be in the future", ErrConflict)
	ErrScheduleBusy    = fmt.Errorf("%w: schedule is being modified, please retry shortly", ErrConflict)

	ErrNotOwner       = fmt.Errorf("%w: actor does not own this appointment", ErrUnauthorized)
	ErrActorNotPermit = fmt.Errorf("%w: actor role cannot perform this operation", ErrUnauthorized)

	ErrNotEditable = fmt.Errorf("%w: appointment can only be modified while BOOKED", ErrInvalidStateTransition)
)

const (
	KindNotFound               = "not_found"
	KindConflict               = "conflict"
	KindInvalidStateTransition = "invalid_state_transition"
	KindUnauthorized           = "unauthorized"
	KindValidation             = "validation_error"
	KindInternal               = "internal_error"
)

// KindOf reports the error kind name used at the HTTP boundary.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidStateTransition
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStateTransition, fmt.Sprintf(format, args...))
}
