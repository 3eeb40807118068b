package appointment

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanChangeStatus(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusBooked, StatusConfirmed, true},
		{StatusBooked, StatusCompleted, true},
		{StatusConfirmed, StatusBooked, true},
		{StatusInProgress, StatusCancelledByDoctor, true},
		{StatusScheduled, StatusScheduled, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusBooked, false},
		{StatusCancelledByPatient, StatusConfirmed, false},
		{StatusCancelledByDoctor, StatusCancelledByPatient, false},
		{StatusBooked, StatusCancelled, false},
	}
	for _, tt := range tests {
		if got := CanChangeStatus(tt.from, tt.to); got != tt.want {
			t.Errorf("CanChangeStatus(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestResolveTarget(t *testing.T) {
	appt := &Appointment{ID: uuid.New(), DoctorID: doctorFive, PatientID: patientA, Status: StatusBooked}
	doctor := DoctorActor{ID: doctorFive, Username: "dr.five"}
	patient := PatientActor{ID: patientA, Username: "alice"}

	tests := []struct {
		name      string
		actor     Actor
		requested AppointmentStatus
		want      AppointmentStatus
		wantErr   error
	}{
		{"doctor cancel", doctor, StatusCancelled, StatusCancelledByDoctor, nil},
		{"doctor complete", doctor, StatusCompleted, StatusCompleted, nil},
		{"doctor confirm", doctor, StatusConfirmed, StatusConfirmed, nil},
		{"doctor rebook", doctor, StatusBooked, "", ErrInvalidStateTransition},
		{"doctor explicit patient cancel", doctor, StatusCancelledByPatient, "", ErrInvalidStateTransition},
		{"patient cancel", patient, StatusCancelled, StatusCancelledByPatient, nil},
		{"patient rebook", patient, StatusBooked, StatusBooked, nil},
		{"patient complete", patient, StatusCompleted, "", ErrInvalidStateTransition},
		{"patient explicit doctor cancel", patient, StatusCancelledByDoctor, "", ErrInvalidStateTransition},
		{"other doctor", DoctorActor{ID: doctorSeven}, StatusConfirmed, "", ErrNotOwner},
		{"other patient", PatientActor{ID: patientB}, StatusCancelled, "", ErrNotOwner},
		{"admin", AdminActor{ID: uuid.New()}, StatusConfirmed, "", ErrActorNotPermit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveTarget(tt.actor, appt, tt.requested)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" in_progress ")
	if err != nil || got != StatusInProgress {
		t.Errorf("ParseStatus = %s, %v", got, err)
	}

	if _, err := ParseStatus("DONE"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrDoctorNotFound, KindNotFound},
		{ErrTimeConflict, KindConflict},
		{ErrScheduleBusy, KindConflict},
		{ErrNotEditable, KindInvalidStateTransition},
		{ErrNotOwner, KindUnauthorized},
		{validationErrorf("bad"), KindValidation},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
