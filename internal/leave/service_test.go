package leave

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
)

type memRepo struct {
	mu     sync.Mutex
	leaves map[uuid.UUID]DoctorLeave
}

func (r *memRepo) InsertLeave(_ context.Context, l *DoctorLeave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves[l.ID] = *l
	return nil
}

func (r *memRepo) GetLeaveByID(_ context.Context, id uuid.UUID) (*DoctorLeave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leaves[id]
	if !ok {
		return nil, ErrLeaveNotFound
	}
	return &l, nil
}

func (r *memRepo) DeleteLeave(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leaves[id]; !ok {
		return ErrLeaveNotFound
	}
	delete(r.leaves, id)
	return nil
}

func (r *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]DoctorLeave, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DoctorLeave
	for _, l := range r.leaves {
		if l.DoctorID == doctorID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// covers mirrors the inclusive BETWEEN of the Postgres query.
func covers(l DoctorLeave, day time.Time) bool {
	return !day.Before(l.StartDate) && !day.After(l.EndDate)
}

func (r *memRepo) CoversDay(_ context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leaves {
		if l.DoctorID == doctorID && covers(l, day) {
			return true, nil
		}
	}
	return false, nil
}

var (
	drHouse  = appointment.DoctorActor{ID: uuid.MustParse("00000000-0000-0000-0000-000000000005"), Username: "dr.house"}
	drWilson = appointment.DoctorActor{ID: uuid.MustParse("00000000-0000-0000-0000-000000000007"), Username: "dr.wilson"}
	patient  = appointment.PatientActor{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000a1"), Username: "alice"}
)

func newTestService(loc *time.Location) (*Service, *memRepo) {
	repo := &memRepo{leaves: map[uuid.UUID]DoctorLeave{}}
	svc := NewService(repo, config.Config{ClinicLocation: loc}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc, repo
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateLeave(t *testing.T) {
	svc, _ := newTestService(time.UTC)
	ctx := context.Background()

	l, err := svc.CreateLeave(ctx, drHouse, day(2025, 6, 10), day(2025, 6, 12), " conference ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.DoctorID != drHouse.ID || l.Reason != "conference" {
		t.Errorf("unexpected leave: %+v", l)
	}

	// Today is allowed.
	if _, err := svc.CreateLeave(ctx, drHouse, day(2025, 6, 1), day(2025, 6, 1), ""); err != nil {
		t.Errorf("leave starting today: %v", err)
	}
}

func TestCreateLeave_Rejections(t *testing.T) {
	svc, _ := newTestService(time.UTC)
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    appointment.Actor
		start    time.Time
		end      time.Time
		wantErr  error
		wantKind string
	}{
		{"patient", patient, day(2025, 6, 10), day(2025, 6, 11), appointment.ErrUnauthorized, appointment.KindUnauthorized},
		{"admin", appointment.AdminActor{ID: uuid.New()}, day(2025, 6, 10), day(2025, 6, 11), appointment.ErrUnauthorized, appointment.KindUnauthorized},
		{"reversed range", drHouse, day(2025, 6, 12), day(2025, 6, 10), ErrInvalidRange, appointment.KindValidation},
		{"starts yesterday", drHouse, day(2025, 5, 31), day(2025, 6, 3), ErrStartInPast, appointment.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateLeave(ctx, tt.actor, tt.start, tt.end, "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if appointment.KindOf(err) != tt.wantKind {
				t.Errorf("kind = %s, want %s", appointment.KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestDeleteLeave(t *testing.T) {
	svc, repo := newTestService(time.UTC)
	ctx := context.Background()

	l, err := svc.CreateLeave(ctx, drHouse, day(2025, 6, 10), day(2025, 6, 12), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteLeave(ctx, l.ID, drWilson); !errors.Is(err, appointment.ErrUnauthorized) {
		t.Errorf("other doctor: expected unauthorized, got %v", err)
	}
	if err := svc.DeleteLeave(ctx, l.ID, patient); !errors.Is(err, appointment.ErrUnauthorized) {
		t.Errorf("patient: expected unauthorized, got %v", err)
	}
	if err := svc.DeleteLeave(ctx, l.ID, drHouse); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if len(repo.leaves) != 0 {
		t.Errorf("leave still stored")
	}
	if err := svc.DeleteLeave(ctx, l.ID, drHouse); !errors.Is(err, appointment.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIsDoctorOnLeave(t *testing.T) {
	svc, _ := newTestService(time.UTC)
	ctx := context.Background()

	if _, err := svc.CreateLeave(ctx, drHouse, day(2025, 6, 10), day(2025, 6, 12), ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		date time.Time
		want bool
	}{
		{day(2025, 6, 9), false},
		{day(2025, 6, 10), true},
		{time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC), true},
		{time.Date(2025, 6, 12, 23, 59, 0, 0, time.UTC), true},
		{day(2025, 6, 13), false},
	}
	for _, tt := range tests {
		got, err := svc.IsDoctorOnLeave(ctx, drHouse.ID, tt.date)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.want {
			t.Errorf("IsDoctorOnLeave(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}

	onLeave, err := svc.IsDoctorOnLeave(ctx, drWilson.ID, day(2025, 6, 11))
	if err != nil || onLeave {
		t.Errorf("other doctor on leave = %v, %v", onLeave, err)
	}
}

func TestIsDoctorOnLeave_UsesClinicCalendar(t *testing.T) {
	loc := time.FixedZone("clinic", 9*60*60)
	svc, _ := newTestService(loc)
	ctx := context.Background()

	if _, err := svc.CreateLeave(ctx, drHouse, time.Date(2025, 6, 10, 0, 0, 0, 0, loc), time.Date(2025, 6, 10, 0, 0, 0, 0, loc), ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 20:00 UTC on the 9th is already the 10th at the clinic.
	onLeave, err := svc.IsDoctorOnLeave(ctx, drHouse.ID, time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !onLeave {
		t.Error("expected doctor on leave")
	}
}

func TestListLeaves(t *testing.T) {
	svc, _ := newTestService(time.UTC)
	ctx := context.Background()

	for _, start := range []int{20, 5, 12} {
		if _, err := svc.CreateLeave(ctx, drHouse, day(2025, 6, start), day(2025, 6, start+1), ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	leaves, err := svc.ListLeaves(ctx, drHouse.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leaves) != 3 || leaves[0].StartDate.Day() != 5 || leaves[2].StartDate.Day() != 20 {
		t.Errorf("unexpected leaves: %+v", leaves)
	}
}
