// Package kafka publishes audit events to a Kafka topic. A circuit breaker
// stops produce attempts while the broker is unreachable so that a broker
// outage costs callers one failed write per cooldown instead of one per event.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "safepilgrim/pkg/platform/audit"
	"safepilgrim/pkg/platform/circuit"
	"safepilgrim/pkg/platform/sentinel"
)

// Producer is the subset of *kgo.Client used by Store.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store appends audit events to a Kafka topic keyed by subject, so all events
// for one digital ID land on the same partition in order.
type Store struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

type Option func(*Store)

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) {
		s.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func New(producer Producer, topic string, opts ...Option) *Store {
	s := &Store{
		producer: producer,
		topic:    topic,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("audit-kafka")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// message is the wire format of an audit event on the topic.
type message struct {
	Category      string    `json:"category"`
	Timestamp     time.Time `json:"timestamp"`
	Subject       string    `json:"subject"`
	Action        string    `json:"action"`
	Decision      string    `json:"decision,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RequestID     string    `json:"request_id,omitempty"`
	ClientIP      string    `json:"client_ip,omitempty"`
	Device        string    `json:"device,omitempty"`
	SubjectIDHash string    `json:"subject_id_hash,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if !s.breaker.Allow() {
		return fmt.Errorf("audit topic %s: circuit open: %w", s.topic, sentinel.ErrUnavailable)
	}

	value, err := json.Marshal(message{
		Category:      string(event.Category),
		Timestamp:     event.Timestamp.UTC(),
		Subject:       event.Subject,
		Action:        event.Action,
		Decision:      event.Decision,
		Reason:        event.Reason,
		RequestID:     event.RequestID,
		ClientIP:      event.ClientIP,
		Device:        event.Device,
		SubjectIDHash: event.SubjectIDHash,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Subject),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
		Timestamp: event.Timestamp,
	}

	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "audit kafka circuit opened",
				"topic", s.topic,
				"error", err,
			)
		}
		return fmt.Errorf("produce audit event to %s: %w", s.topic, err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "audit kafka circuit closed", "topic", s.topic)
	}
	return nil
}
