package mock

import (
	"context"
	"testing"
	"time"

	"interview-transcript-service/internal/clock/fake"
	"interview-transcript-service/internal/models"
)

func collect(s *Source) *[]models.TranscriptionEvent {
	var got []models.TranscriptionEvent
	s.SubscribeTranscription(func(ev models.TranscriptionEvent) {
		got = append(got, ev)
	})
	return &got
}

func TestSource_PlaysPartialsThenFinal(t *testing.T) {
	clk := fake.New(time.Unix(0, 0))
	s := New("room-1", Config{
		Script: []Utterance{
			{ParticipantID: "agent", Partials: []string{"Hello", "Hello there"}, Final: "Hello there, welcome"},
			{ParticipantID: "cand", TrackID: "mic", Partials: []string{"Thanks"}},
		},
		PartialInterval: 100 * time.Millisecond,
		TurnGap:         time.Second,
	}, clk)
	got := collect(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	for i := 0; i < 3; i++ {
		clk.Advance(100 * time.Millisecond)
	}
	if len(*got) != 3 {
		t.Fatalf("expected 3 segments for first utterance, got %d", len(*got))
	}
	last := (*got)[2]
	if !last.Segments[0].Final || last.Segments[0].Text != "Hello there, welcome" {
		t.Errorf("expected final as third segment, got %+v", last.Segments[0])
	}
	if last.Participant.Identity != "agent" || last.Publication != nil {
		t.Errorf("unexpected metadata %+v %+v", last.Participant, last.Publication)
	}

	// Nothing during the turn gap.
	clk.Advance(500 * time.Millisecond)
	if len(*got) != 3 {
		t.Fatalf("expected no segment during turn gap, got %d", len(*got))
	}

	clk.Advance(500 * time.Millisecond)
	if len(*got) != 4 {
		t.Fatalf("expected partial-only utterance after gap, got %d", len(*got))
	}
	ev := (*got)[3]
	if ev.Segments[0].Final {
		t.Error("partial-only utterance must not emit a final")
	}
	if ev.Publication == nil || ev.Publication.TrackSid != "mic" {
		t.Errorf("expected track mic, got %+v", ev.Publication)
	}
	if !s.Done() {
		t.Error("expected script done")
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no timers after script end, got %d", clk.Pending())
	}
}

func TestSource_CloseStopsPlayback(t *testing.T) {
	clk := fake.New(time.Unix(0, 0))
	s := New("room-1", Config{PartialInterval: 100 * time.Millisecond, TurnGap: time.Second}, clk)
	got := collect(s)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.ConnectionState() != models.ConnectionConnected {
		t.Errorf("expected connected, got %s", s.ConnectionState())
	}
	clk.Advance(100 * time.Millisecond)
	s.Close()
	clk.Advance(10 * time.Second)

	if len(*got) != 1 {
		t.Errorf("expected 1 segment before close, got %d", len(*got))
	}
	if s.ConnectionState() != models.ConnectionDisconnected {
		t.Errorf("expected disconnected, got %s", s.ConnectionState())
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error starting a closed source")
	}
}

func TestSource_Loop(t *testing.T) {
	clk := fake.New(time.Unix(0, 0))
	s := New("room-1", Config{
		Script:          []Utterance{{ParticipantID: "a", Final: "one shot"}},
		PartialInterval: 10 * time.Millisecond,
		TurnGap:         10 * time.Millisecond,
		Loop:            true,
	}, clk)
	got := collect(s)

	s.Start(context.Background())
	defer s.Close()
	for i := 0; i < 3; i++ {
		clk.Advance(10 * time.Millisecond)
	}
	if len(*got) != 3 {
		t.Errorf("expected looped script to emit 3 finals, got %d", len(*got))
	}
}
