// Package push provides a Source fed directly by callers, such as the HTTP
// API receiving events from a media bridge webhook.
package push

import (
	"context"
	"errors"
	"sync/atomic"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/schema"
	"interview-transcript-service/internal/service/source"
)

// ErrClosed is returned when emitting into a closed source.
var ErrClosed = errors.New("push source is closed")

// Source is a push-driven source.Source.
type Source struct {
	*source.Broker
	closed atomic.Bool
}

var _ source.Source = (*Source)(nil)

// New creates a push source. It reports connected until told otherwise.
func New() *Source {
	return &Source{Broker: source.NewBroker(models.ConnectionConnected)}
}

// Start implements source.Source. Push sources have nothing to start.
func (s *Source) Start(ctx context.Context) error {
	return nil
}

// Emit decodes a raw producer payload and delivers it.
func (s *Source) Emit(data []byte) error {
	ev, err := schema.Decode(data)
	if err != nil {
		return err
	}
	return s.EmitEvent(ev)
}

// EmitEvent delivers an already decoded event.
func (s *Source) EmitEvent(ev models.TranscriptionEvent) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.Publish(ev)
	return nil
}

// SetConnectionState records a connection change reported by the bridge.
func (s *Source) SetConnectionState(state models.ConnectionState) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.SetState(state)
	return nil
}

// Close implements source.Source.
func (s *Source) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.SetState(models.ConnectionDisconnected)
	}
	return nil
}
