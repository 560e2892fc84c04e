package source

import (
	"errors"
	"testing"

	"interview-transcript-service/internal/models"
)

func TestBroker_PublishAndUnsubscribe(t *testing.T) {
	b := NewBroker(models.ConnectionConnected)

	var got []models.TranscriptionEvent
	sub := b.SubscribeTranscription(func(ev models.TranscriptionEvent) {
		got = append(got, ev)
	})

	b.Publish(models.TranscriptionEvent{Segments: []models.WireSegment{{Text: "hello"}}})
	sub.Unsubscribe()
	sub.Unsubscribe()
	b.Publish(models.TranscriptionEvent{Segments: []models.WireSegment{{Text: "ignored"}}})

	if len(got) != 1 {
		t.Fatalf("expected 1 event before unsubscribe, got %d", len(got))
	}
	if b.Subscribers() != 0 {
		t.Errorf("expected no subscribers left, got %d", b.Subscribers())
	}
}

func TestBroker_SetStateNotifiesOnChange(t *testing.T) {
	b := NewBroker(models.ConnectionConnecting)

	var states []models.ConnectionState
	sub := b.SubscribeConnection(func(s models.ConnectionState) {
		states = append(states, s)
	})
	defer sub.Unsubscribe()

	b.SetState(models.ConnectionConnected)
	b.SetState(models.ConnectionConnected)
	b.SetState(models.ConnectionDisconnected)

	if len(states) != 2 {
		t.Fatalf("expected 2 notifications, got %v", states)
	}
	if b.ConnectionState() != models.ConnectionDisconnected {
		t.Errorf("expected disconnected, got %s", b.ConnectionState())
	}
}

func TestBroker_HandlerMaySubscribe(t *testing.T) {
	b := NewBroker(models.ConnectionConnected)

	nested := 0
	b.SubscribeTranscription(func(models.TranscriptionEvent) {
		b.SubscribeTranscription(func(models.TranscriptionEvent) { nested++ })
	})

	b.Publish(models.TranscriptionEvent{})
	b.Publish(models.TranscriptionEvent{})

	if nested != 1 {
		t.Errorf("expected handlers registered during publish to see later events, got %d", nested)
	}
}

func TestBroker_Dispatch(t *testing.T) {
	b := NewBroker(models.ConnectionConnected)

	var events []models.TranscriptionEvent
	var states []models.ConnectionState
	b.SubscribeTranscription(func(ev models.TranscriptionEvent) { events = append(events, ev) })
	b.SubscribeConnection(func(s models.ConnectionState) { states = append(states, s) })

	tests := []struct {
		name    string
		frame   string
		wantErr bool
	}{
		{"transcription object", `{"type":"transcription","event":{"segments":{"text":"hi there","final":false}}}`, false},
		{"transcription array", `{"type":"transcription","event":{"segments":[{"text":"a"},{"text":"b"}]}}`, false},
		{"connection", `{"type":"connection","state":"reconnecting"}`, false},
		{"connection without state", `{"type":"connection"}`, true},
		{"bad segments", `{"type":"transcription","event":{"segments":"text"}}`, true},
		{"not json", `{{`, true},
		{"unknown", `{"type":"heartbeat"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Dispatch([]byte(tt.frame))
			if (err != nil) != tt.wantErr {
				t.Errorf("Dispatch() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if len(events[1].Segments) != 2 {
		t.Errorf("expected array batch of 2, got %d", len(events[1].Segments))
	}
	if len(states) != 1 || states[0] != models.ConnectionReconnecting {
		t.Errorf("expected [reconnecting], got %v", states)
	}
	if err := b.Dispatch([]byte(`{"type":"heartbeat"}`)); !errors.Is(err, ErrUnknownFrame) {
		t.Errorf("expected ErrUnknownFrame, got %v", err)
	}
}
