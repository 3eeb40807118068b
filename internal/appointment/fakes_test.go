package appointment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/directory"
	redisclient "github.com/clinicdesk/appointment-scheduling/internal/redis"
)

// -- In-memory repository --

type memRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]Appointment
	events []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]Appointment)}
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) ListByDoctorBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if a.DoctorID == doctorID && !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) list(match func(Appointment) bool, limit, offset int) []Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return r.list(func(a Appointment) bool { return a.PatientID == patientID }, limit, offset), nil
}

func (r *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return r.list(func(a Appointment) bool { return a.DoctorID == doctorID }, limit, offset), nil
}

// WithTx holds the repository mutex for the whole transaction and restores the
// previous state when fn fails.
func (r *memRepo) WithTx(_ context.Context, fn func(tx TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[uuid.UUID]Appointment, len(r.appts))
	for k, v := range r.appts {
		snapshot[k] = v
	}
	eventCount := len(r.events)

	if err := fn(&memTx{r: r}); err != nil {
		r.appts = snapshot
		r.events = r.events[:eventCount]
		return err
	}
	return nil
}

func (r *memRepo) put(a Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts[a.ID] = a
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

type memTx struct {
	r *memRepo
}

func (t *memTx) LockDoctorSchedule(_ context.Context, _ uuid.UUID) error { return nil }

func (t *memTx) GetAppointmentForUpdate(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := t.r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (t *memTx) FindBookedBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time, exclude uuid.UUID) ([]Appointment, error) {
	var out []Appointment
	for _, a := range t.r.appts {
		if a.DoctorID != doctorID || a.Status != StatusBooked || a.ID == exclude {
			continue
		}
		if a.ScheduledAt.Before(from) || a.ScheduledAt.After(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *Appointment) error {
	t.r.appts[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAppointment(_ context.Context, a *Appointment) error {
	if _, ok := t.r.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	t.r.appts[a.ID] = *a
	return nil
}

func (t *memTx) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	if _, ok := t.r.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(t.r.appts, id)
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, ev EventLog) error {
	t.r.events = append(t.r.events, ev)
	return nil
}

// -- Directory, locker, notifier --

// fakeDirectory serves accounts from FindByID; current overrides what
// FindCurrent returns, standing in for a cache that has gone stale.
type fakeDirectory struct {
	accounts map[uuid.UUID]*directory.Account
	current  map[uuid.UUID]*directory.Account
}

func (d *fakeDirectory) FindByID(_ context.Context, id uuid.UUID) (*directory.Account, error) {
	a, ok := d.accounts[id]
	if !ok {
		return nil, directory.ErrAccountNotFound
	}
	return a, nil
}

func (d *fakeDirectory) FindCurrent(ctx context.Context, id uuid.UUID) (*directory.Account, error) {
	if a, ok := d.current[id]; ok {
		return a, nil
	}
	return d.FindByID(ctx, id)
}

type fakeLocker struct {
	busy map[string]bool
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l.busy[key] {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationKind, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Kind
	}
	return out
}

// -- Fixture --

var (
	doctorFive  = uuid.MustParse("00000000-0000-0000-0000-000000000005")
	doctorSeven = uuid.MustParse("00000000-0000-0000-0000-000000000007")
	idleDoctor  = uuid.MustParse("00000000-0000-0000-0000-000000000008")
	patientA    = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	patientB    = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	sleepyPat   = uuid.MustParse("00000000-0000-0000-0000-0000000000c3")
)

// fixedNow is well before the scenario dates used in the tests.
var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	dir      *fakeDirectory
	repo     *memRepo
	locker   *fakeLocker
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := &fakeDirectory{accounts: map[uuid.UUID]*directory.Account{
		doctorFive:  {ID: doctorFive, Username: "dr.five", Role: directory.RoleDoctor, IsActive: true},
		doctorSeven: {ID: doctorSeven, Username: "dr.seven", Role: directory.RoleDoctor, IsActive: true},
		idleDoctor:  {ID: idleDoctor, Username: "dr.idle", Role: directory.RoleDoctor, IsActive: false},
		patientA:    {ID: patientA, Username: "alice", Role: directory.RolePatient, IsActive: true},
		patientB:    {ID: patientB, Username: "bob", Role: directory.RolePatient, IsActive: true},
		sleepyPat:   {ID: sleepyPat, Username: "carol", Role: directory.RolePatient, IsActive: false},
	}}

	f := &fixture{
		dir:      dir,
		repo:     newMemRepo(),
		locker:   &fakeLocker{busy: map[string]bool{}},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.repo, dir, f.locker, f.notifier, config.Config{ClinicLocation: time.UTC}, zap.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func at(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) book(t *testing.T, doctorID, patientID uuid.UUID, when string) *Appointment {
	t.Helper()
	appt, err := f.svc.BookAppointment(context.Background(), doctorID, patientID, at(when), nil)
	if err != nil {
		t.Fatalf("book %s at %s: %v", doctorID, when, err)
	}
	return appt
}

func (f *fixture) seed(doctorID, patientID uuid.UUID, when string, status AppointmentStatus) Appointment {
	a := Appointment{
		ID:              uuid.New(),
		DoctorID:        doctorID,
		PatientID:       patientID,
		ScheduledAt:     at(when),
		Status:          status,
		CreatedAt:       fixedNow,
		UpdatedAt:       fixedNow,
		StatusChangedAt: fixedNow,
		StatusChangedBy: SystemActorName,
	}
	f.repo.put(a)
	return a
}
