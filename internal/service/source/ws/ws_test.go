package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"interview-transcript-service/internal/models"
)

// bridge is a fake media bridge that sends scripted frames to each client.
func bridge(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSource_DeliversFrames(t *testing.T) {
	srv := bridge(t, []string{
		`{"type":"transcription","event":{"segments":{"text":"Tell me about yourself","final":true},"participant":{"identity":"agent-1"}}}`,
		`not json`,
		`{"type":"transcription","event":{"segments":5}}`,
		`{"type":"unknown"}`,
		`{"type":"connection","state":"reconnecting"}`,
	})
	defer srv.Close()

	s := New("room-1", DefaultConfig(wsURL(srv)))

	var mu sync.Mutex
	var events []models.TranscriptionEvent
	var states []models.ConnectionState
	gotState := make(chan struct{}, 1)

	s.SubscribeTranscription(func(ev models.TranscriptionEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	s.SubscribeConnection(func(st models.ConnectionState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
		if st == models.ConnectionReconnecting {
			gotState <- struct{}{}
		}
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	select {
	case <-gotState:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection frame")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 valid transcription event, got %d", len(events))
	}
	if events[0].Participant == nil || events[0].Participant.Identity != "agent-1" {
		t.Errorf("unexpected participant %+v", events[0].Participant)
	}
	if len(states) < 2 || states[0] != models.ConnectionConnected {
		t.Errorf("expected connected then reconnecting, got %v", states)
	}
}

func TestSource_StartFailsOnBadURL(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1/nowhere")
	cfg.HandshakeTimeout = time.Second
	s := New("room-1", cfg)

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	if s.ConnectionState() != models.ConnectionDisconnected {
		t.Errorf("expected disconnected after failed start, got %s", s.ConnectionState())
	}
	if err := s.Close(); err != nil {
		t.Errorf("close after failed start: %v", err)
	}
}

func TestSource_CloseIsIdempotent(t *testing.T) {
	srv := bridge(t, nil)
	defer srv.Close()

	s := New("room-1", DefaultConfig(wsURL(srv)))
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	s.Close()
	if err := s.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if s.ConnectionState() != models.ConnectionDisconnected {
		t.Errorf("expected disconnected after close, got %s", s.ConnectionState())
	}
}
