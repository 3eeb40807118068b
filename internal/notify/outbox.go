package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

// OutboxEntry is a notification that could not be published.
type OutboxEntry struct {
	ID           int64
	Notification appointment.Notification
	Attempts     int
	LastError    string
	CreatedAt    time.Time
}

type Outbox interface {
	Record(ctx context.Context, n appointment.Notification, cause error) error
	Pending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

type PgOutbox struct {
	pool *pgxpool.Pool
}

func NewPgOutbox(pool *pgxpool.Pool) *PgOutbox {
	return &PgOutbox{pool: pool}
}

func (o *PgOutbox) Record(ctx context.Context, n appointment.Notification, cause error) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = o.pool.Exec(ctx, `
		INSERT INTO notification_outbox (kind, appointment_id, payload, last_error)
		VALUES ($1, $2, $3, $4)
	`, n.Kind, n.AppointmentID, payload, errorText(cause))
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

// Pending returns undelivered rows oldest first. A row may be published
// more than once if two relays run concurrently; consumers dedupe on the
// message ID.
func (o *PgOutbox) Pending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := o.pool.Query(ctx, `
		SELECT id, payload, attempts, last_error, created_at
		FROM notification_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			e       OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Notification); err != nil {
			return nil, fmt.Errorf("decode outbox row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (o *PgOutbox) MarkDelivered(ctx context.Context, id int64) error {
	_, err := o.pool.Exec(ctx, `UPDATE notification_outbox SET delivered_at = now() WHERE id = $1`, id)
	return err
}

func (o *PgOutbox) MarkFailed(ctx context.Context, id int64, cause error) error {
	_, err := o.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
	`, id, errorText(cause))
	return err
}

// CountPending is used by the relay for its run summary.
func (o *PgOutbox) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := o.pool.QueryRow(ctx, `SELECT count(*) FROM notification_outbox WHERE delivered_at IS NULL`).Scan(&n)
	return n, err
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

var _ Outbox = (*PgOutbox)(nil)
