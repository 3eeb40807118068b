package appointment

// CanChangeStatus is the raw state machine. A same-state request is always
// allowed (it is a no-op); nothing leaves a terminal state; every other
// non-terminal source may move to any stored status.
func CanChangeStatus(from, to AppointmentStatus) bool {
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return to != StatusCancelled
}

var (
	doctorTargets = map[AppointmentStatus]bool{
		StatusScheduled:  true,
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusConfirmed:  true,
		StatusCancelled:  true,
	}
	patientTargets = map[AppointmentStatus]bool{
		StatusBooked:    true,
		StatusCancelled: true,
	}
)

// resolveTarget applies the role policy for a requested status change and
// returns the status that will actually be stored. It runs before the state
// machine is consulted.
func resolveTarget(actor Actor, appt *Appointment, requested AppointmentStatus) (AppointmentStatus, error) {
	switch a := actor.(type) {
	case DoctorActor:
		if appt.DoctorID != a.ID {
			return "", ErrNotOwner
		}
		if !doctorTargets[requested] {
			return "", transitionErrorf("doctors cannot set status %s", requested)
		}
		return remapCancellation(requested, StatusCancelledByDoctor), nil
	case PatientActor:
		if appt.PatientID != a.ID {
			return "", ErrNotOwner
		}
		if !patientTargets[requested] {
			return "", transitionErrorf("patients cannot set status %s", requested)
		}
		return remapCancellation(requested, StatusCancelledByPatient), nil
	case AdminActor:
		return "", ErrActorNotPermit
	default:
		return "", ErrActorNotPermit
	}
}

// remapCancellation turns the generic CANCELLED request into the cancellation
// state that records who cancelled. The caller's role decides the variant.
func remapCancellation(requested, cancelledAs AppointmentStatus) AppointmentStatus {
	if requested == StatusCancelled {
		return cancelledAs
	}
	return requested
}
