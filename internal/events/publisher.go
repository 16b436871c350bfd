// Package events publishes degraded-widget notifications for downstream
// alerting. Publishing never blocks dashboard assembly.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// WidgetFailureEvent describes one widget rendered without data
type WidgetFailureEvent struct {
	AquariumID string    `json:"aquarium_id"`
	Widget     string    `json:"widget"`
	WidgetID   string    `json:"widget_id"`
	ChartID    string    `json:"chart_id,omitempty"`
	Reason     string    `json:"reason"`
	Error      string    `json:"error"`
	RequestID  string    `json:"request_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends widget failure events
type Publisher interface {
	Publish(ctx context.Context, ev WidgetFailureEvent) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, WidgetFailureEvent) error { return nil }
func (NopPublisher) Close() error                                     { return nil }

// KafkaConfig holds the options for a KafkaPublisher
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by aquarium id
type KafkaPublisher struct {
	writer messageWriter
	log    *slog.Logger
}

// NewPublisher returns a KafkaPublisher when brokers are configured and a
// NopPublisher otherwise
func NewPublisher(cfg KafkaConfig, log *slog.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Info("event_publisher_disabled")
		return NopPublisher{}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("kafka topic must not be empty")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("event_publish_failed", slog.Int("messages", len(messages)), slog.Any("error", err))
			}
		},
	}
	log.Info("event_publisher_enabled", slog.String("topic", cfg.Topic), slog.Any("brokers", cfg.Brokers))
	return newKafkaPublisher(w, log), nil
}

func newKafkaPublisher(w messageWriter, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log}
}

// Publish enqueues the event on the async writer
func (p *KafkaPublisher) Publish(ctx context.Context, ev WidgetFailureEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.AquariumID),
		Value: value,
		Time:  ev.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
