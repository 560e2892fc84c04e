// Package reconcile turns a noisy stream of partial and final speech
// segments into a deduplicated, append-only transcript log.
//
// A Reconciler keeps one pending utterance per (participant, track) key and
// promotes it to the log when a final segment arrives or when its promotion
// timer fires. A periodic Sweep discards pending utterances whose source went
// silent without ever promoting them.
//
// A Reconciler is not safe for concurrent use. Every entry point, including
// the timer callbacks scheduled on its clock, must run on a single logical
// event queue; the room package provides one.
package reconcile

import (
	"sort"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"interview-transcript-service/internal/clock"
	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/observability/metrics"
	"interview-transcript-service/internal/participant"
	"interview-transcript-service/internal/service/segment"
)

// Cause records how an entry reached the log.
type Cause string

const (
	CauseFinal   Cause = "final"
	CauseTimeout Cause = "timeout"
)

// RemovalReason records why a pending utterance left pending state.
type RemovalReason string

const (
	// RemovedPromoted - the utterance became a log entry.
	RemovedPromoted RemovalReason = "promoted"
	// RemovedDuplicate - the utterance was finalized but matched an existing entry.
	RemovedDuplicate RemovalReason = "duplicate"
	// RemovedEvicted - the sweep discarded the utterance.
	RemovedEvicted RemovalReason = "evicted"
)

// Listener observes reconciler state changes. Callbacks run synchronously on
// the reconciler's event queue after the state change is complete; they must
// not call mutating Reconciler methods.
type Listener interface {
	EntryAppended(entry models.TranscriptEntry, cause Cause)
	PendingUpdated(p models.PendingUtterance)
	PendingRemoved(p models.PendingUtterance, reason RemovalReason)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock sets the clock used for timestamps and promotion timers.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithClassifier sets the agent/candidate classifier that selects promotion delays.
func WithClassifier(c *participant.Classifier) Option {
	return func(r *Reconciler) {
		r.classifier = c
	}
}

// WithListener registers a state change listener.
func WithListener(l Listener) Option {
	return func(r *Reconciler) {
		r.listeners = append(r.listeners, l)
	}
}

// WithIDGenerator sets the entry ID generator.
func WithIDGenerator(g *segment.Generator) Option {
	return func(r *Reconciler) {
		r.ids = g
	}
}

// WithLogger overrides the room-scoped logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.log = l
	}
}

// slot is the registry record for one pending key.
type slot struct {
	lifecycle *segment.Lifecycle
	utterance models.PendingUtterance
	started   time.Time
	timer     clock.Timer
}

func (s *slot) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Reconciler owns the pending-utterance registry and the final transcript log.
type Reconciler struct {
	roomID     string
	cfg        Config
	clock      clock.Clock
	classifier *participant.Classifier
	ids        *segment.Generator
	metrics    *metrics.Metrics
	log        zerolog.Logger
	listeners  []Listener

	entries []models.TranscriptEntry
	slots   map[string]*slot
	closed  bool
}

// New creates a reconciler for one interview room.
func New(roomID string, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		roomID:  roomID,
		cfg:     cfg,
		clock:   clock.Real{},
		metrics: metrics.DefaultMetrics,
		log:     logging.WithRoomComponent(roomID, "reconciler"),
		slots:   make(map[string]*slot),
	}
	for _, o := range opts {
		o(r)
	}
	if r.classifier == nil {
		r.classifier = participant.NewClassifier()
	}
	if r.ids == nil {
		r.ids = segment.NewGenerator(roomID)
	}
	return r
}

// Key returns the pending key for a participant track.
func Key(participantID, trackID string) string {
	return participantID + "|" + trackID
}

// Ingest processes segments in the order given. It never fails: empty,
// short or post-close segments are dropped.
func (r *Reconciler) Ingest(segments []models.Segment) {
	for _, seg := range segments {
		r.ingestSegment(seg)
	}
}

func (r *Reconciler) ingestSegment(seg models.Segment) {
	if r.closed {
		r.metrics.RecordSegmentDropped("closed")
		return
	}
	if seg.Text == "" {
		r.metrics.RecordSegmentDropped("empty")
		return
	}

	key := Key(seg.ParticipantID, seg.TrackID)
	if seg.IsFinal {
		r.metrics.RecordSegment(true)
		r.finalize(key, seg)
		return
	}

	// Short partials never touch state, so they cannot cancel the timer of
	// an utterance already in flight on the same key.
	if utf8.RuneCountInString(seg.Text) < r.cfg.MinPartialLength {
		r.metrics.RecordSegmentDropped("short")
		return
	}
	r.metrics.RecordSegment(false)
	r.upsertPending(key, seg)
}

func (r *Reconciler) finalize(key string, seg models.Segment) {
	s, ok := r.slots[key]
	if ok {
		s.stopTimer()
		s.lifecycle.Finalize()
		delete(r.slots, key)
	}

	appended := r.appendFinal(seg.ParticipantID, seg.Text, CauseFinal)

	if ok {
		r.endPending(s, appended, false)
	}
}

func (r *Reconciler) upsertPending(key string, seg models.Segment) {
	now := r.clock.Now()

	s, ok := r.slots[key]
	if !ok {
		s = &slot{lifecycle: segment.NewLifecycle(key), started: now}
		r.slots[key] = s
		r.metrics.RecordPendingStarted()
	}
	s.stopTimer()

	gen := s.lifecycle.Touch()
	s.utterance = models.PendingUtterance{
		Key:           key,
		ParticipantID: seg.ParticipantID,
		TrackID:       seg.TrackID,
		Text:          seg.Text,
		LastUpdate:    now,
	}
	s.timer = r.clock.AfterFunc(r.promotionDelay(seg.ParticipantID), func() {
		r.promote(key, s, gen)
	})

	for _, l := range r.listeners {
		l.PendingUpdated(s.utterance)
	}
}

// promote is the promotion timer callback. It is a no-op once the room is
// closed or when newer activity has replaced the slot or its generation.
func (r *Reconciler) promote(key string, s *slot, gen uint64) {
	if r.closed {
		return
	}
	if cur, ok := r.slots[key]; !ok || cur != s {
		return
	}
	if err := s.lifecycle.Promote(gen); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("Ignoring stale promotion timer")
		return
	}
	s.timer = nil
	delete(r.slots, key)

	appended := r.appendFinal(s.utterance.ParticipantID, s.utterance.Text, CauseTimeout)
	r.endPending(s, appended, false)
}

func (r *Reconciler) promotionDelay(participantID string) time.Duration {
	if r.classifier.IsAgent(participantID) {
		return r.cfg.AgentPromotionDelay
	}
	return r.cfg.UserPromotionDelay
}

// appendFinal runs the dedup rule and appends on success.
func (r *Reconciler) appendFinal(participantID, text string, cause Cause) bool {
	now := r.clock.Now()
	if r.isDuplicate(participantID, text, now) {
		r.metrics.RecordDuplicate()
		r.log.Debug().
			Str("participantId", participantID).
			Str("cause", string(cause)).
			Str("text", text).
			Msg("Duplicate final rejected")
		return false
	}

	entry := models.TranscriptEntry{
		ID:            r.ids.Next(),
		ParticipantID: participantID,
		Text:          text,
		Timestamp:     now,
		IsFinal:       true,
	}
	r.entries = append(r.entries, entry)
	r.metrics.RecordEntryAppended(string(cause))
	r.log.Debug().
		Str("entryId", entry.ID).
		Str("participantId", participantID).
		Str("cause", string(cause)).
		Msg("Entry appended")

	for _, l := range r.listeners {
		l.EntryAppended(entry, cause)
	}
	return true
}

// isDuplicate scans the log backwards while entries are inside the dedup window.
func (r *Reconciler) isDuplicate(participantID, text string, now time.Time) bool {
	candidate := normalizeText(text)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if now.Sub(e.Timestamp) > r.cfg.DedupWindow {
			return false
		}
		if e.ParticipantID != participantID {
			continue
		}
		if sameUtterance(normalizeText(e.Text), candidate, r.cfg.DedupSimilarity) {
			return true
		}
	}
	return false
}

func (r *Reconciler) endPending(s *slot, appended, evicted bool) {
	r.metrics.RecordPendingEnded(evicted, r.clock.Now().Sub(s.started).Seconds())

	reason := RemovedPromoted
	switch {
	case evicted:
		reason = RemovedEvicted
	case !appended:
		reason = RemovedDuplicate
	}
	for _, l := range r.listeners {
		l.PendingRemoved(s.utterance, reason)
	}
}

// Sweep evicts pending utterances idle for longer than the stale horizon,
// without promoting them. It returns the number of evictions.
func (r *Reconciler) Sweep() int {
	if r.closed {
		return 0
	}
	now := r.clock.Now()

	var stale []string
	for key, s := range r.slots {
		if s.lifecycle.IsPending() && now.Sub(s.utterance.LastUpdate) > r.cfg.StaleAfter {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)

	for _, key := range stale {
		s := r.slots[key]
		s.stopTimer()
		s.lifecycle.Evict()
		delete(r.slots, key)

		r.log.Debug().
			Str("participantId", s.utterance.ParticipantID).
			Str("trackId", s.utterance.TrackID).
			Dur("idle", now.Sub(s.utterance.LastUpdate)).
			Msg("Stale pending utterance evicted")
		r.endPending(s, false, true)
	}
	return len(stale)
}

// Suspend cancels every promotion timer while keeping pending text in place.
// Used when the media session drops: an abandoned utterance is left for the
// sweep instead of being promoted. New activity on a key re-arms its timer.
func (r *Reconciler) Suspend() int {
	n := 0
	for _, s := range r.slots {
		if s.timer != nil {
			s.stopTimer()
			n++
		}
	}
	return n
}

// Close cancels all timers and drops pending state. Later calls to any
// method, and timers that were already in flight, are no-ops. The final log
// stays readable.
func (r *Reconciler) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for key, s := range r.slots {
		s.stopTimer()
		r.metrics.RecordPendingEnded(false, r.clock.Now().Sub(s.started).Seconds())
		delete(r.slots, key)
	}
}

// Closed reports whether Close was called.
func (r *Reconciler) Closed() bool {
	return r.closed
}

// Entries returns a copy of the final log in promotion order.
func (r *Reconciler) Entries() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Pending returns a copy of the pending utterances, oldest update first.
func (r *Reconciler) Pending() []models.PendingUtterance {
	out := make([]models.PendingUtterance, 0, len(r.slots))
	for _, s := range r.slots {
		if s.lifecycle.IsPending() {
			out = append(out, s.utterance)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUpdate.Equal(out[j].LastUpdate) {
			return out[i].Key < out[j].Key
		}
		return out[i].LastUpdate.Before(out[j].LastUpdate)
	})
	return out
}

// Snapshot is a point-in-time copy of reconciler state.
type Snapshot struct {
	Entries []models.TranscriptEntry
	Pending []models.PendingUtterance
}

// Snapshot copies the log and the pending utterances.
func (r *Reconciler) Snapshot() Snapshot {
	return Snapshot{
		Entries: r.Entries(),
		Pending: r.Pending(),
	}
}
