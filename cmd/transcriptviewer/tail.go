package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/participant"
)

// tail rebuilds a room's transcript from published events.
type tail struct {
	room    string
	finals  []models.TranscriptFinal
	pending map[string]models.TranscriptPending
}

func newTail(room string) *tail {
	return &tail{room: room, pending: make(map[string]models.TranscriptPending)}
}

// apply folds one published message into the tail and reports whether the
// visible transcript changed.
func (t *tail) apply(value []byte) (bool, error) {
	var head struct {
		EventType string `json:"eventType"`
		RoomID    string `json:"roomId"`
	}
	if err := json.Unmarshal(value, &head); err != nil {
		return false, fmt.Errorf("decode event: %w", err)
	}
	if t.room != "" && head.RoomID != t.room {
		return false, nil
	}

	switch head.EventType {
	case models.EventTypeFinal:
		var ev models.TranscriptFinal
		if err := json.Unmarshal(value, &ev); err != nil {
			return false, fmt.Errorf("decode final: %w", err)
		}
		t.finals = append(t.finals, ev)
		return true, nil
	case models.EventTypePending:
		var ev models.TranscriptPending
		if err := json.Unmarshal(value, &ev); err != nil {
			return false, fmt.Errorf("decode pending: %w", err)
		}
		key := ev.RoomID + "|" + ev.ParticipantID + "|" + ev.TrackID
		if ev.Removed {
			_, ok := t.pending[key]
			delete(t.pending, key)
			return ok, nil
		}
		t.pending[key] = ev
		return true, nil
	default:
		return false, fmt.Errorf("unknown event type %q", head.EventType)
	}
}

// render writes the final transcript followed by live pending lines.
func (t *tail) render(w io.Writer) {
	for _, ev := range t.finals {
		label := participant.Role(ev.Role).Label()
		fmt.Fprintf(w, "[%s] %-11s %s\n", time.UnixMilli(ev.Timestamp).Format(time.TimeOnly), label+":", ev.Text)
	}

	keys := make([]string, 0, len(t.pending))
	for k := range t.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return t.pending[keys[i]].Timestamp < t.pending[keys[j]].Timestamp
	})
	for _, k := range keys {
		ev := t.pending[k]
		fmt.Fprintf(w, "  ... %s: %s\n", ev.ParticipantID, ev.Text)
	}
}
