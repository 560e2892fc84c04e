// Package kafka provides a Source that consumes media bridge frames from a
// Kafka topic. Messages are keyed by room ID; frames for other rooms are skipped.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/service/source"
)

// Config holds Kafka source configuration.
type Config struct {
	Brokers []string
	Topic   string
	// GroupID enables consumer-group reads. Empty reads partition 0 from the
	// latest offset.
	GroupID string
}

// Reader is the subset of *kafka.Reader the source needs.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Source is a Kafka-backed source.Source.
type Source struct {
	*source.Broker
	roomID string
	reader Reader
	log    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool
}

var _ source.Source = (*Source)(nil)

// New creates a Kafka source for roomID.
func New(roomID string, cfg Config) (*Source, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka source: brokers and topic are required")
	}

	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	}
	if cfg.GroupID != "" {
		rc.GroupID = cfg.GroupID
		rc.StartOffset = kafka.LastOffset
	} else {
		rc.Partition = 0
		rc.StartOffset = kafka.LastOffset
	}

	return NewWithReader(roomID, kafka.NewReader(rc)), nil
}

// NewWithReader creates a source on an existing reader.
func NewWithReader(roomID string, r Reader) *Source {
	return &Source{
		Broker: source.NewBroker(models.ConnectionConnecting),
		roomID: roomID,
		reader: r,
		log:    logging.WithSource(roomID, "kafka"),
	}
}

// Start begins consuming in the background.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("kafka source: start after close")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.SetState(models.ConnectionConnected)
	go s.consume(runCtx)
	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer close(s.done)

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.log.Warn().Err(err).Msg("Kafka read error")
			s.SetState(models.ConnectionReconnecting)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if s.ConnectionState() == models.ConnectionReconnecting {
			s.SetState(models.ConnectionConnected)
		}
		if string(msg.Key) != s.roomID {
			continue
		}
		if err := s.Dispatch(msg.Value); err != nil {
			s.log.Warn().Err(err).Int64("offset", msg.Offset).Msg("Dropping Kafka frame")
		}
	}
}

// Close stops consuming and closes the reader.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	err := s.reader.Close()
	s.SetState(models.ConnectionDisconnected)
	return err
}
