package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
)

// Dispatcher is the asynchronous appointment.Notifier. Notify only enqueues;
// worker goroutines publish, and anything that fails to publish is written to
// the outbox for the relay to retry.
type Dispatcher struct {
	publisher Publisher
	outbox    Outbox
	log       *zap.Logger
	timeout   time.Duration
	workers   int

	queue  chan appointment.Notification
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	// overflow tracks outbox writes for notifications that found the buffer full.
	overflow sync.WaitGroup
}

func NewDispatcher(publisher Publisher, outbox Outbox, cfg config.Config, log *zap.Logger) *Dispatcher {
	workers := cfg.NotifyWorkers
	if workers <= 0 {
		workers = 1
	}
	buffer := cfg.NotifyBuffer
	if buffer < 0 {
		buffer = 0
	}
	timeout := cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Dispatcher{
		publisher: publisher,
		outbox:    outbox,
		log:       log,
		timeout:   timeout,
		workers:   workers,
		queue:     make(chan appointment.Notification, buffer),
	}
}

// Start launches the workers. They run until Close.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
}

// Notify never blocks on delivery. When the buffer is full the notification
// is written to the outbox from a background goroutine. After Close it is
// written to the outbox before Notify returns, bounded by the notify timeout.
func (d *Dispatcher) Notify(ctx context.Context, n appointment.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("notification after dispatcher shutdown",
			zap.String("kind", string(n.Kind)),
			zap.String("appointment_id", n.AppointmentID.String()),
		)
		d.persist(ctx, n, errDispatcherClosed)
		return
	}

	select {
	case d.queue <- n:
	default:
		d.log.Warn("notification buffer full",
			zap.String("kind", string(n.Kind)),
			zap.String("appointment_id", n.AppointmentID.String()),
		)
		// Add happens under the read lock, so Close cannot be waiting yet.
		d.overflow.Add(1)
		go func() {
			defer d.overflow.Done()
			d.persist(ctx, n, errBufferFull)
		}()
	}
}

// Close stops accepting notifications and waits for the workers to drain the
// buffer and for pending overflow writes, or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		d.overflow.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(worker int) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(worker, n)
	}
}

func (d *Dispatcher) deliver(worker int, n appointment.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, n); err != nil {
		d.log.Error("publish notification failed",
			zap.Int("worker", worker),
			zap.String("kind", string(n.Kind)),
			zap.String("appointment_id", n.AppointmentID.String()),
			zap.Error(err),
		)
		d.persist(ctx, n, err)
		return
	}

	d.log.Debug("notification published",
		zap.String("kind", string(n.Kind)),
		zap.String("appointment_id", n.AppointmentID.String()),
	)
}

func (d *Dispatcher) persist(ctx context.Context, n appointment.Notification, cause error) {
	if d.outbox == nil {
		return
	}
	// The publish timeout may already have consumed ctx.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.outbox.Record(writeCtx, n, cause); err != nil {
		d.log.Error("notification lost",
			zap.String("kind", string(n.Kind)),
			zap.String("appointment_id", n.AppointmentID.String()),
			zap.NamedError("publish_error", cause),
			zap.Error(err),
		)
	}
}

var _ appointment.Notifier = (*Dispatcher)(nil)
