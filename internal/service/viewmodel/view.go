// Package viewmodel projects reconciler state into what a transcript viewer renders.
package viewmodel

import (
	"sort"
	"time"
	"unicode/utf8"

	"interview-transcript-service/internal/participant"
	"interview-transcript-service/internal/service/reconcile"
)

// Config controls the live pending display.
type Config struct {
	// MinPartialLength hides pending text shorter than this many runes.
	MinPartialLength int `yaml:"min_partial_length"`
	// MaxPending caps the number of simultaneously displayed pending utterances.
	MaxPending int `yaml:"max_pending"`
}

// DefaultConfig returns the display defaults.
func DefaultConfig() Config {
	return Config{
		MinPartialLength: 3,
		MaxPending:       2,
	}
}

// Message is a finalized transcript line.
type Message struct {
	ID            string           `json:"id"`
	ParticipantID string           `json:"participantId"`
	Role          participant.Role `json:"role"`
	Label         string           `json:"label"`
	Text          string           `json:"text"`
	Timestamp     time.Time        `json:"timestamp"`
	IsFinal       bool             `json:"isFinal"`
}

// LivePartial is a pending utterance shown as "speaking...".
type LivePartial struct {
	ParticipantID string           `json:"participantId"`
	Role          participant.Role `json:"role"`
	Label         string           `json:"label"`
	Text          string           `json:"text"`
	LastUpdate    time.Time        `json:"lastUpdateTime"`
}

// View is the renderable transcript.
type View struct {
	Messages []Message     `json:"messages"`
	Pending  []LivePartial `json:"pending"`
}

// Projector derives Views from reconciler snapshots. It holds no state of
// its own beyond configuration.
type Projector struct {
	cfg        Config
	classifier *participant.Classifier
}

// NewProjector creates a projector. A nil classifier uses the default markers.
func NewProjector(cfg Config, classifier *participant.Classifier) *Projector {
	if classifier == nil {
		classifier = participant.NewClassifier()
	}
	return &Projector{cfg: cfg, classifier: classifier}
}

// Render projects a snapshot. Messages keep log order. Pending shows at most
// MaxPending of the most recently updated utterances, oldest first.
func (p *Projector) Render(snap reconcile.Snapshot) View {
	view := View{
		Messages: make([]Message, 0, len(snap.Entries)),
		Pending:  []LivePartial{},
	}

	for _, e := range snap.Entries {
		role := p.classifier.Role(e.ParticipantID)
		view.Messages = append(view.Messages, Message{
			ID:            e.ID,
			ParticipantID: e.ParticipantID,
			Role:          role,
			Label:         role.Label(),
			Text:          e.Text,
			Timestamp:     e.Timestamp,
			IsFinal:       e.IsFinal,
		})
	}

	for _, u := range snap.Pending {
		if utf8.RuneCountInString(u.Text) < p.cfg.MinPartialLength {
			continue
		}
		role := p.classifier.Role(u.ParticipantID)
		view.Pending = append(view.Pending, LivePartial{
			ParticipantID: u.ParticipantID,
			Role:          role,
			Label:         role.Label(),
			Text:          u.Text,
			LastUpdate:    u.LastUpdate,
		})
	}

	if p.cfg.MaxPending >= 0 && len(view.Pending) > p.cfg.MaxPending {
		sort.SliceStable(view.Pending, func(i, j int) bool {
			return view.Pending[i].LastUpdate.After(view.Pending[j].LastUpdate)
		})
		view.Pending = view.Pending[:p.cfg.MaxPending]
	}
	sort.SliceStable(view.Pending, func(i, j int) bool {
		return view.Pending[i].LastUpdate.Before(view.Pending[j].LastUpdate)
	})

	return view
}
