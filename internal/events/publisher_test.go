package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"interview-transcript-service/internal/models"
)

// recordingWriter captures written messages.
type recordingWriter struct {
	msgs     []kafka.Message
	writeErr error
	closeErr error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.pending.w != nil || p.final.w != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicPending: "test.pending",
		TopicFinal:   "test.final",
		Principal:    "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.pending.topic != "test.pending" {
		t.Errorf("expected topic pending 'test.pending', got %s", p.pending.topic)
	}
	if p.final.topic != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.final.topic)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := New(&Config{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		TopicPending: "t.pending",
		TopicFinal:   "t.final",
	})
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher enabled")
	}
	w, ok := p.pending.w.(*kafka.Writer)
	if !ok || w.Topic != "t.pending" {
		t.Errorf("unexpected pending writer %+v", p.pending.w)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Errorf("expected hash balancer, got %T", w.Balancer)
	}
	if w, ok := p.final.w.(*kafka.Writer); !ok || w.Topic != "t.final" {
		t.Errorf("unexpected final writer %+v", p.final.w)
	}
}

func TestPublisher_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, TopicPending: "test.pending", TopicFinal: "test.final", Principal: "test-svc"})
	ctx := context.Background()

	if err := p.PublishPending(ctx, models.TranscriptPending{
		EventType:     models.EventTypePending,
		RoomID:        "room-1",
		ParticipantID: "candidate-1",
		TrackID:       "_default",
		Text:          "I worked on",
	}); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
	if err := p.PublishFinal(ctx, models.TranscriptFinal{
		EventType: models.EventTypeFinal,
		RoomID:    "room-1",
		EntryID:   "room-1-entry-1",
		Text:      "Tell me about a project",
	}); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_RoutesByTopicAndKeysByRoom(t *testing.T) {
	pending, final := &recordingWriter{}, &recordingWriter{}
	p := NewWithWriters("svc-test", "t.pending", pending, "t.final", final)
	ctx := context.Background()

	p.PublishPending(ctx, models.TranscriptPending{EventType: models.EventTypePending, RoomID: "room-9", Text: "So the"})
	p.PublishFinal(ctx, models.TranscriptFinal{EventType: models.EventTypeFinal, RoomID: "room-9", EntryID: "room-9-entry-1", Text: "So the plan was"})

	if len(pending.msgs) != 1 || len(final.msgs) != 1 {
		t.Fatalf("expected one message per topic, got %d/%d", len(pending.msgs), len(final.msgs))
	}

	msg := final.msgs[0]
	if string(msg.Key) != "room-9" {
		t.Errorf("expected room key, got %q", msg.Key)
	}
	if header(msg, "eventType") != models.EventTypeFinal || header(msg, "principal") != "svc-test" || header(msg, "roomId") != "room-9" {
		t.Errorf("unexpected headers %+v", msg.Headers)
	}
	var decoded models.TranscriptFinal
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.EntryID != "room-9-entry-1" {
		t.Errorf("unexpected payload %s (%v)", msg.Value, err)
	}
	if header(pending.msgs[0], "eventType") != models.EventTypePending {
		t.Errorf("unexpected pending headers %+v", pending.msgs[0].Headers)
	}
}

func TestPublisher_WriteError(t *testing.T) {
	boom := errors.New("broker unavailable")
	p := NewWithWriters("svc", "t.pending", &recordingWriter{}, "t.final", &recordingWriter{writeErr: boom})

	err := p.PublishFinal(context.Background(), models.TranscriptFinal{EventType: models.EventTypeFinal, RoomID: "r"})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels cannot be marshaled
	err := p.publish(context.Background(), topicWriter{topic: "test.topic"}, "test", "key", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close(t *testing.T) {
	boom := errors.New("close failed")
	pending, final := &recordingWriter{}, &recordingWriter{closeErr: boom}
	p := NewWithWriters("svc", "t.pending", pending, "t.final", final)

	if err := p.Close(); !errors.Is(err, boom) {
		t.Errorf("expected close error, got %v", err)
	}
	if !pending.closed || !final.closed {
		t.Error("expected both writers closed")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	if err := New(&Config{Enabled: false}).Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
	if err := (&Publisher{}).Close(); err != nil {
		t.Errorf("expected no error closing zero publisher, got %v", err)
	}
}
