package schema

import (
	"testing"

	"interview-transcript-service/internal/models"
)

func TestDecode_BareObject(t *testing.T) {
	ev, err := Decode([]byte(`{"segments":{"text":"Tell me about yourself","final":true},"participant":{"identity":"agent-1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ev.Segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(ev.Segments))
	}
	if ev.Segments[0].Text != "Tell me about yourself" || !ev.Segments[0].Final {
		t.Errorf("unexpected segment: %+v", ev.Segments[0])
	}
	if ev.Participant == nil || ev.Participant.Identity != "agent-1" {
		t.Errorf("expected participant agent-1, got %+v", ev.Participant)
	}
}

func TestDecode_Array(t *testing.T) {
	ev, err := Decode([]byte(`{"segments":[{"text":"I worked","final":false},{"text":"I worked at","final":false}],"publication":{"trackSid":"TR_1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ev.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(ev.Segments))
	}
	if ev.Segments[1].Text != "I worked at" {
		t.Errorf("expected producer order to be kept, got %q", ev.Segments[1].Text)
	}
	if ev.Publication == nil || ev.Publication.TrackSid != "TR_1" {
		t.Errorf("expected track TR_1, got %+v", ev.Publication)
	}
}

func TestDecode_EmptyBatches(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing", `{}`},
		{"null", `{"segments":null}`},
		{"empty array", `{"segments":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.data))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(ev.Segments) != 0 {
				t.Errorf("expected no segments, got %d", len(ev.Segments))
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []string{
		`not json`,
		`{"segments":"hello"}`,
		`{"segments":42}`,
		`{"segments":{"text":5}}`,
	}
	for _, data := range tests {
		if _, err := Decode([]byte(data)); err == nil {
			t.Errorf("expected error for %s", data)
		}
	}
}

func TestNormalize_DefaultsAndTrimming(t *testing.T) {
	ev := models.TranscriptionEvent{
		Segments: []models.WireSegment{
			{Text: "  hello there  ", Final: true},
			{Text: "   ", Final: false},
			{Text: "", Final: true},
			{Text: "still talking", Final: false},
		},
	}

	segs := Normalize(ev)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments after dropping empty text, got %d", len(segs))
	}
	if segs[0].Text != "hello there" {
		t.Errorf("expected trimmed text, got %q", segs[0].Text)
	}
	for _, s := range segs {
		if s.ParticipantID != DefaultParticipant {
			t.Errorf("expected default participant %q, got %q", DefaultParticipant, s.ParticipantID)
		}
		if s.TrackID != DefaultTrack {
			t.Errorf("expected default track %q, got %q", DefaultTrack, s.TrackID)
		}
	}
	if segs[1].IsFinal {
		t.Error("expected second segment to be partial")
	}
}

func TestResolveParticipant(t *testing.T) {
	tests := []struct {
		name string
		info *models.ParticipantInfo
		want string
	}{
		{"nil", nil, "AI"},
		{"empty", &models.ParticipantInfo{}, "AI"},
		{"identity wins", &models.ParticipantInfo{Identity: "user-1", Name: "Sam"}, "user-1"},
		{"name fallback", &models.ParticipantInfo{Name: "Sam"}, "Sam"},
		{"blank identity", &models.ParticipantInfo{Identity: "  ", Name: "Sam"}, "Sam"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveParticipant(tt.info); got != tt.want {
				t.Errorf("ResolveParticipant() = %q, want %q", got, tt.want)
			}
		})
	}
}
