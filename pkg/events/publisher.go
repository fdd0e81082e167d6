// Package events publishes staffing domain events (approvals, reminders,
// escalations) for downstream consumers
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Type string

const (
	AssignmentApproved  Type = "assignment.approved"
	AssignmentReleased  Type = "assignment.released"
	ReminderSent        Type = "reminder.sent"
	AttendanceConfirmed Type = "attendance.confirmed"
	EscalationRaised    Type = "escalation.raised"
	EventUpdated        Type = "event.updated"
	EventDeleted        Type = "event.deleted"
)

type Event struct {
	Type       Type      `json:"type"`
	EventID    string    `json:"event_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
	Label      string    `json:"label,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes a keyed message
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer initializes a producer writing to topic
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaProducer) Publish(ctx context.Context, key, value []byte) error {
	const op = "events.KafkaProducer.Publish"

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// Nop discards everything
type Nop struct{}

func (Nop) Publish(context.Context, []byte, []byte) error { return nil }

// Emitter serializes domain events and hands them to a Publisher. Publishing
// is best effort: failures are logged, never returned.
type Emitter struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewEmitter(publisher Publisher, logger *zap.Logger) *Emitter {
	if publisher == nil {
		publisher = Nop{}
	}
	return &Emitter{publisher: publisher, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error("Failed to encode domain event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	// Keyed by event so one event's messages stay ordered within a partition
	if err := e.publisher.Publish(ctx, []byte(ev.EventID), value); err != nil {
		e.logger.Warn("Failed to publish domain event",
			zap.String("type", string(ev.Type)),
			zap.String("event_id", ev.EventID),
			zap.Error(err))
	}
}
