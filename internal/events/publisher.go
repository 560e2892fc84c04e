// Package events publishes transcript changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/observability/metrics"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicPending string
	TopicFinal   string
	Principal    string
	Enabled      bool
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicWriter pairs a topic with its writer. w is nil in log-only mode.
type topicWriter struct {
	topic string
	w     MessageWriter
}

// Publisher publishes pending updates and final entries to separate Kafka
// topics, keyed by room so each room stays on one partition.
type Publisher struct {
	pending   topicWriter
	final     topicWriter
	principal string
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New creates a Kafka event publisher. A nil or disabled config yields a
// log-only publisher.
func New(cfg *Config) *Publisher {
	logger := logging.WithComponent("publisher")
	if cfg == nil {
		logger.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{metrics: metrics.DefaultMetrics, log: logger}
	}

	p := &Publisher{
		pending:   topicWriter{topic: cfg.TopicPending},
		final:     topicWriter{topic: cfg.TopicFinal},
		principal: cfg.Principal,
		metrics:   metrics.DefaultMetrics,
		log:       logger,
	}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		logger.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	p.pending.w = newWriter(cfg.Brokers, cfg.TopicPending, transport)
	p.final.w = newWriter(cfg.Brokers, cfg.TopicFinal, transport)

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPending", cfg.TopicPending).
		Str("topicFinal", cfg.TopicFinal).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// NewWithWriters builds an enabled publisher on caller-supplied writers.
func NewWithWriters(principal string, pendingTopic string, pending MessageWriter, finalTopic string, final MessageWriter) *Publisher {
	return &Publisher{
		pending:   topicWriter{topic: pendingTopic, w: pending},
		final:     topicWriter{topic: finalTopic, w: final},
		principal: principal,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("publisher"),
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool {
	return p.pending.w != nil || p.final.w != nil
}

// PublishPending publishes a pending utterance change.
func (p *Publisher) PublishPending(ctx context.Context, ev models.TranscriptPending) error {
	return p.publish(ctx, p.pending, ev.EventType, ev.RoomID, ev)
}

// PublishFinal publishes a finalized transcript entry.
func (p *Publisher) PublishFinal(ctx context.Context, ev models.TranscriptFinal) error {
	return p.publish(ctx, p.final, ev.EventType, ev.RoomID, ev)
}

func (p *Publisher) publish(ctx context.Context, tw topicWriter, eventType, roomID string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", tw.topic).Msg("Failed to marshal event")
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	p.log.Debug().
		Str("topic", tw.topic).
		Str("roomId", roomID).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if tw.w == nil {
		p.metrics.RecordKafkaPublish(tw.topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(roomID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
			{Key: "roomId", Value: []byte(roomID)},
		},
	}

	err = tw.w.WriteMessages(ctx, msg)
	p.metrics.RecordKafkaPublish(tw.topic, eventType, err, time.Since(start).Seconds())
	if err != nil {
		p.log.Error().
			Err(err).
			Str("topic", tw.topic).
			Str("roomId", roomID).
			Msg("Failed to write to Kafka")
		return fmt.Errorf("write %s: %w", tw.topic, err)
	}
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var errs []error
	for _, tw := range []topicWriter{p.pending, p.final} {
		if tw.w == nil {
			continue
		}
		if err := tw.w.Close(); err != nil {
			p.log.Error().Err(err).Str("topic", tw.topic).Msg("Error closing writer")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
