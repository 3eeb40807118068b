package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Finder resolves accounts by ID.
type Finder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.FullName,
		&a.Role,
		&a.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, full_name, role, is_active
		FROM accounts
		WHERE id = $1
	`, id)
	acc, err := scanAccount(row)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("find account %s: %w", id, err)
	}
	return acc, err
}

// FindCurrent is FindByID; the table is always current.
func (r *PgRepository) FindCurrent(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.FindByID(ctx, id)
}

// ListIDsByRole is used by tooling that needs a pool of existing accounts.
func (r *PgRepository) ListIDsByRole(ctx context.Context, role Role, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM accounts
		WHERE role = $1 AND is_active
		ORDER BY created_at
		LIMIT $2
	`, role, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", role, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
