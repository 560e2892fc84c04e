// Package ws provides a Source that reads source.Frame messages from a media
// bridge over WebSocket, reconnecting with backoff when the link drops.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/service/source"
)

// Config holds WebSocket source configuration.
type Config struct {
	URL               string
	Header            http.Header
	HandshakeTimeout  time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns sensible defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		HandshakeTimeout:  10 * time.Second,
		ReconnectDelay:    500 * time.Millisecond,
		MaxReconnectDelay: 10 * time.Second,
	}
}

// Source is a WebSocket-backed source.Source.
type Source struct {
	*source.Broker
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

var _ source.Source = (*Source)(nil)

// New creates a WebSocket source for roomID.
func New(roomID string, cfg Config) *Source {
	return &Source{
		Broker: source.NewBroker(models.ConnectionConnecting),
		cfg:    cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: logging.WithSource(roomID, "ws"),
	}
}

// Start dials the bridge and begins reading in the background. The first
// dial is synchronous so configuration errors surface immediately.
func (s *Source) Start(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		s.SetState(models.ConnectionDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		conn.Close()
		return fmt.Errorf("ws source: start after close")
	}
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.SetState(models.ConnectionConnected)
	go s.run(runCtx, conn)
	return nil
}

func (s *Source) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("ws source: dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

func (s *Source) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)

	delay := s.cfg.ReconnectDelay
	for {
		err := s.readLoop(conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Msg("Media bridge connection lost")
		s.SetState(models.ConnectionReconnecting)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			next, err := s.dial(ctx)
			if err == nil {
				s.mu.Lock()
				if s.closed {
					s.mu.Unlock()
					next.Close()
					return
				}
				conn = next
				s.conn = conn
				s.mu.Unlock()
				delay = s.cfg.ReconnectDelay
				s.log.Info().Msg("Media bridge reconnected")
				s.SetState(models.ConnectionConnected)
				break
			}
			s.log.Debug().Err(err).Dur("delay", delay).Msg("Reconnect failed")
			delay *= 2
			if s.cfg.MaxReconnectDelay > 0 && delay > s.cfg.MaxReconnectDelay {
				delay = s.cfg.MaxReconnectDelay
			}
		}
	}
}

func (s *Source) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleFrame(data)
	}
}

func (s *Source) handleFrame(data []byte) {
	if err := s.Dispatch(data); err != nil {
		if errors.Is(err, source.ErrUnknownFrame) {
			s.log.Debug().Err(err).Msg("Ignoring bridge frame")
			return
		}
		s.log.Warn().Err(err).Msg("Dropping malformed bridge frame")
	}
}

// Close stops the reader and closes the connection.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel, conn, done := s.cancel, s.conn, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = conn.Close()
	}
	if done != nil {
		<-done
	}
	s.SetState(models.ConnectionDisconnected)
	return err
}
