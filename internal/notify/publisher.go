package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/clinicdesk/appointment-scheduling/internal/appointment"
)

// Publisher hands one notification to the delivery channel.
type Publisher interface {
	Publish(ctx context.Context, n appointment.Notification) error
}

var errNotConfirmed = errors.New("message not confirmed by broker")

// confirmChannel is the part of *amqp.Channel the publisher uses.
type confirmChannel interface {
	GetNextPublishSeqNo() uint64
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// AMQPPublisher publishes persistent JSON messages to a durable queue and
// waits for the broker's publisher confirm.
type AMQPPublisher struct {
	ch       confirmChannel
	queue    string
	confirms <-chan amqp.Confirmation
	mu       sync.Mutex
}

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return conn, nil
}

func NewAMQPPublisher(conn *amqp.Connection, queue string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	// Confirms of publishes that timed out stay queued until the next
	// Publish discards them; the buffer keeps the broker reader from blocking.
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))
	return newAMQPPublisher(ch, queue, confirms), nil
}

const confirmBuffer = 64

func newAMQPPublisher(ch confirmChannel, queue string, confirms <-chan amqp.Confirmation) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, queue: queue, confirms: confirms}
}

func (p *AMQPPublisher) Publish(ctx context.Context, n appointment.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	// One publish in flight per channel; the delivery tag tells our confirm
	// apart from late confirms of earlier publishes.
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Type:         string(n.Kind),
		MessageId:    messageID(n),
		Timestamp:    n.OccurredAt,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	tag := p.ch.GetNextPublishSeqNo()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	for {
		select {
		case confirmed, ok := <-p.confirms:
			if !ok {
				return fmt.Errorf("publish to %s: channel closed", p.queue)
			}
			if confirmed.DeliveryTag < tag {
				continue
			}
			if !confirmed.Ack {
				return fmt.Errorf("publish to %s: %w", p.queue, errNotConfirmed)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("publish to %s: %w", p.queue, ctx.Err())
		}
	}
}

// messageID is stable across relay retries of one notification and distinct
// between notifications, so consumers can dedupe on it.
func messageID(n appointment.Notification) string {
	if n.ID != uuid.Nil {
		return n.ID.String()
	}
	return fmt.Sprintf("%s:%s:%d", n.AppointmentID, n.Kind, n.OccurredAt.UnixNano())
}

// Ping reports whether the channel is still usable.
func (p *AMQPPublisher) Ping(_ context.Context) error {
	if p.ch.IsClosed() {
		return errors.New("amqp channel closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// LogPublisher writes notifications to the log. It stands in for the broker
// when none is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, n appointment.Notification) error {
	p.log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("appointment_id", n.AppointmentID.String()),
		zap.String("doctor_id", n.DoctorID.String()),
		zap.String("patient_id", n.PatientID.String()),
		zap.String("status", string(n.Status)),
		zap.Time("scheduled_at", n.ScheduledAt),
	)
	return nil
}
