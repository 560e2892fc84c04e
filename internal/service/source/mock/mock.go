// Package mock provides a scripted Source for development and tests.
// It plays an interview as progressive partial transcripts followed by at
// most one final per utterance, paced on a clock.Clock.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interview-transcript-service/internal/clock"
	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/service/source"
)

// Utterance is one scripted turn.
type Utterance struct {
	ParticipantID string
	TrackID       string
	Partials      []string // Progressive partial transcripts
	Final         string   // Final transcript; empty leaves promotion to the timer
}

// DefaultScript is a short interview exchange.
var DefaultScript = []Utterance{
	{
		ParticipantID: "agent-interviewer",
		Partials:      []string{"Thanks for", "Thanks for joining", "Thanks for joining today"},
		Final:         "Thanks for joining today, can you introduce yourself?",
	},
	{
		ParticipantID: "candidate-1",
		Partials:      []string{"Sure", "Sure, I'm a", "Sure, I'm a backend engineer"},
		Final:         "Sure, I'm a backend engineer with six years of experience",
	},
	{
		ParticipantID: "agent-interviewer",
		Partials:      []string{"What drew", "What drew you to", "What drew you to this role"},
		Final:         "What drew you to this role?",
	},
	{
		ParticipantID: "candidate-1",
		Partials:      []string{"Mostly the", "Mostly the focus on", "Mostly the focus on real-time systems"},
	},
	{
		ParticipantID: "agent-interviewer",
		Partials:      []string{"Great", "Great, let's talk"},
		Final:         "Great, let's talk about a project you're proud of",
	},
}

// Config controls pacing.
type Config struct {
	Script []Utterance
	// PartialInterval separates consecutive segments of one utterance.
	PartialInterval time.Duration
	// TurnGap separates utterances. It should exceed the promotion delays
	// when the script relies on timeout promotion.
	TurnGap time.Duration
	Loop    bool
}

// DefaultConfig returns the default script at conversational pace.
func DefaultConfig() Config {
	return Config{
		Script:          DefaultScript,
		PartialInterval: 300 * time.Millisecond,
		TurnGap:         4 * time.Second,
	}
}

// Source is a scripted source.Source.
type Source struct {
	*source.Broker
	cfg   Config
	clock clock.Clock
	log   zerolog.Logger

	mu      sync.Mutex
	timer   clock.Timer
	turn    int
	step    int
	started bool
	closed  bool
	done    chan struct{}
}

var _ source.Source = (*Source)(nil)

// New creates a mock source for roomID paced on c.
func New(roomID string, cfg Config, c clock.Clock) *Source {
	if c == nil {
		c = clock.Real{}
	}
	if len(cfg.Script) == 0 {
		cfg.Script = DefaultScript
	}
	return &Source{
		Broker: source.NewBroker(models.ConnectionConnecting),
		cfg:    cfg,
		clock:  c,
		log:    logging.WithSource(roomID, "mock"),
		done:   make(chan struct{}),
	}
}

// Start begins playing the script.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("mock source: start after close")
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.timer = s.clock.AfterFunc(s.cfg.PartialInterval, s.tick)
	s.mu.Unlock()

	s.SetState(models.ConnectionConnected)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return nil
}

// tick emits the next segment and schedules the one after it.
func (s *Source) tick() {
	s.mu.Lock()
	if s.closed || s.turn >= len(s.cfg.Script) {
		s.mu.Unlock()
		return
	}

	u := s.cfg.Script[s.turn]
	var seg models.WireSegment
	last := true
	if s.step < len(u.Partials) {
		seg = models.WireSegment{Text: u.Partials[s.step]}
		s.step++
		last = s.step == len(u.Partials) && u.Final == ""
	} else if u.Final != "" {
		seg = models.WireSegment{Text: u.Final, Final: true}
	}

	next := s.cfg.PartialInterval
	if last {
		s.turn++
		s.step = 0
		next = s.cfg.TurnGap
		if s.turn >= len(s.cfg.Script) && s.cfg.Loop {
			s.turn = 0
		}
	}
	if s.turn < len(s.cfg.Script) {
		s.timer = s.clock.AfterFunc(next, s.tick)
	} else {
		s.timer = nil
	}
	s.mu.Unlock()

	if seg.Text == "" {
		return
	}
	ev := models.TranscriptionEvent{
		Segments:    []models.WireSegment{seg},
		Participant: &models.ParticipantInfo{Identity: u.ParticipantID},
	}
	if u.TrackID != "" {
		ev.Publication = &models.PublicationInfo{TrackSid: u.TrackID}
	}
	s.log.Debug().
		Str("participantId", u.ParticipantID).
		Bool("final", seg.Final).
		Str("text", seg.Text).
		Msg("Mock segment")
	s.Publish(ev)
}

// Done reports whether the script has been played out.
func (s *Source) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn >= len(s.cfg.Script)
}

// Close stops playback.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	close(s.done)
	s.mu.Unlock()

	s.SetState(models.ConnectionDisconnected)
	return nil
}
