package appointment

import "github.com/google/uuid"

// Actor is the authenticated identity performing an operation. The set of
// implementations is closed: DoctorActor, PatientActor and AdminActor.
type Actor interface {
	ActorID() uuid.UUID
	ActorName() string
	isActor()
}

type DoctorActor struct {
	ID       uuid.UUID
	Username string
}

type PatientActor struct {
	ID       uuid.UUID
	Username string
}

// AdminActor may hard-delete appointments and nothing else in this package.
type AdminActor struct {
	ID       uuid.UUID
	Username string
}

func (a DoctorActor) ActorID() uuid.UUID { return a.ID }
func (a DoctorActor) ActorName() string  { return a.Username }
func (DoctorActor) isActor()             {}

func (a PatientActor) ActorID() uuid.UUID { return a.ID }
func (a PatientActor) ActorName() string  { return a.Username }
func (PatientActor) isActor()             {}

func (a AdminActor) ActorID() uuid.UUID { return a.ID }
func (a AdminActor) ActorName() string  { return a.Username }
func (AdminActor) isActor()             {}
