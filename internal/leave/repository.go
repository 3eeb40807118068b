package leave

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	InsertLeave(ctx context.Context, l *DoctorLeave) error
	GetLeaveByID(ctx context.Context, id uuid.UUID) (*DoctorLeave, error)
	DeleteLeave(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorLeave, error)

	// Reports whether any leave of the doctor covers day.
	CoversDay(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const leaveCols = `id, doctor_id, start_date, end_date, reason, created_at`

func scanLeave(row pgx.Row) (*DoctorLeave, error) {
	var l DoctorLeave
	err := row.Scan(&l.ID, &l.DoctorID, &l.StartDate, &l.EndDate, &l.Reason, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeaveNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *PgRepository) InsertLeave(ctx context.Context, l *DoctorLeave) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctor_leaves (`+leaveCols+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.DoctorID, l.StartDate, l.EndDate, l.Reason, l.CreatedAt)
	return err
}

func (r *PgRepository) GetLeaveByID(ctx context.Context, id uuid.UUID) (*DoctorLeave, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leaveCols+` FROM doctor_leaves WHERE id = $1`, id)
	return scanLeave(row)
}

func (r *PgRepository) DeleteLeave(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM doctor_leaves WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaveNotFound
	}
	return nil
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]DoctorLeave, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leaveCols+`
		FROM doctor_leaves
		WHERE doctor_id = $1
		ORDER BY start_date
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaves []DoctorLeave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, *l)
	}
	return leaves, rows.Err()
}

func (r *PgRepository) CoversDay(ctx context.Context, doctorID uuid.UUID, day time.Time) (bool, error) {
	var onLeave bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_leaves
			WHERE doctor_id = $1 AND $2::date BETWEEN start_date AND end_date
		)
	`, doctorID, day.Format(time.DateOnly)).Scan(&onLeave)
	return onLeave, err
}
