// Package schema is the intake boundary for transcription payloads. Producers
// may send segments as a bare object or as an array and may omit participant
// or track metadata; everything past this package works on canonical
// models.Segment values with defaulted metadata.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"interview-transcript-service/internal/models"
)

const (
	// DefaultParticipant labels segments whose producer sent no identity or name.
	DefaultParticipant = "AI"
	// DefaultTrack collapses all track-less segments of a participant onto one key.
	DefaultTrack = "_default"
)

type rawEvent struct {
	Segments    json.RawMessage         `json:"segments"`
	Participant *models.ParticipantInfo `json:"participant,omitempty"`
	Publication *models.PublicationInfo `json:"publication,omitempty"`
}

// Decode parses a raw producer payload into a TranscriptionEvent.
// A null or missing segments field yields an empty batch.
func Decode(data []byte) (models.TranscriptionEvent, error) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.TranscriptionEvent{}, fmt.Errorf("decode transcription event: %w", err)
	}

	ev := models.TranscriptionEvent{
		Participant: raw.Participant,
		Publication: raw.Publication,
	}

	body := bytes.TrimSpace(raw.Segments)
	switch {
	case len(body) == 0, bytes.Equal(body, []byte("null")):
	case body[0] == '[':
		if err := json.Unmarshal(body, &ev.Segments); err != nil {
			return models.TranscriptionEvent{}, fmt.Errorf("decode segment list: %w", err)
		}
	case body[0] == '{':
		var seg models.WireSegment
		if err := json.Unmarshal(body, &seg); err != nil {
			return models.TranscriptionEvent{}, fmt.Errorf("decode segment: %w", err)
		}
		ev.Segments = []models.WireSegment{seg}
	default:
		return models.TranscriptionEvent{}, fmt.Errorf("decode segments: unexpected JSON %q", truncate(string(body), 32))
	}
	return ev, nil
}

// Normalize converts an event into canonical segments in producer order.
// Segments with empty or whitespace-only text are dropped.
func Normalize(ev models.TranscriptionEvent) []models.Segment {
	participantID := ResolveParticipant(ev.Participant)
	trackID := ResolveTrack(ev.Publication)

	out := make([]models.Segment, 0, len(ev.Segments))
	for _, s := range ev.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		out = append(out, models.Segment{
			ParticipantID: participantID,
			TrackID:       trackID,
			Text:          text,
			IsFinal:       s.Final,
		})
	}
	return out
}

// ResolveParticipant picks identity, then name, then DefaultParticipant.
func ResolveParticipant(p *models.ParticipantInfo) string {
	if p != nil {
		if id := strings.TrimSpace(p.Identity); id != "" {
			return id
		}
		if name := strings.TrimSpace(p.Name); name != "" {
			return name
		}
	}
	return DefaultParticipant
}

// ResolveTrack returns the publication track SID or DefaultTrack.
func ResolveTrack(p *models.PublicationInfo) string {
	if p != nil {
		if sid := strings.TrimSpace(p.TrackSid); sid != "" {
			return sid
		}
	}
	return DefaultTrack
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
