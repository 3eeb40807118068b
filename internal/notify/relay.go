package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Relay republishes outbox rows that earlier publishes could not deliver.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	batch     int
	timeout   time.Duration
	log       *zap.Logger
}

type RelayResult struct {
	Delivered int
	Failed    int
}

func NewRelay(outbox Outbox, publisher Publisher, batch int, timeout time.Duration, log *zap.Logger) *Relay {
	if batch <= 0 {
		batch = 100
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Relay{outbox: outbox, publisher: publisher, batch: batch, timeout: timeout, log: log}
}

// RunOnce handles one batch of pending rows. A failed publish is recorded on
// the row and does not stop the batch.
func (r *Relay) RunOnce(ctx context.Context) (RelayResult, error) {
	var res RelayResult

	entries, err := r.outbox.Pending(ctx, r.batch)
	if err != nil {
		return res, fmt.Errorf("load pending notifications: %w", err)
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		pubCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.publisher.Publish(pubCtx, e.Notification)
		cancel()

		if err != nil {
			res.Failed++
			r.log.Warn("relay publish failed",
				zap.Int64("outbox_id", e.ID),
				zap.Int("attempts", e.Attempts+1),
				zap.Error(err),
			)
			if markErr := r.outbox.MarkFailed(ctx, e.ID, err); markErr != nil {
				return res, fmt.Errorf("mark outbox row %d failed: %w", e.ID, markErr)
			}
			continue
		}

		if err := r.outbox.MarkDelivered(ctx, e.ID); err != nil {
			return res, fmt.Errorf("mark outbox row %d delivered: %w", e.ID, err)
		}
		res.Delivered++
	}

	return res, nil
}
