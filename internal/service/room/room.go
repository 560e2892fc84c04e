// Package room runs one interview room: a single event loop that owns the
// transcript reconciler, feeds it from a media session source, schedules the
// staleness sweep, and fans rendered views out to watchers and Kafka.
package room

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"interview-transcript-service/internal/clock"
	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/observability/metrics"
	"interview-transcript-service/internal/participant"
	"interview-transcript-service/internal/schema"
	"interview-transcript-service/internal/service/reconcile"
	"interview-transcript-service/internal/service/source"
	"interview-transcript-service/internal/service/viewmodel"
)

var (
	ErrRoomClosed   = errors.New("room is closed")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

const (
	queueSize  = 256
	outboxSize = 256
)

// Publisher receives transcript change events.
type Publisher interface {
	PublishPending(ctx context.Context, ev models.TranscriptPending) error
	PublishFinal(ctx context.Context, ev models.TranscriptFinal) error
}

// Config holds per-room settings.
type Config struct {
	Reconcile     reconcile.Config
	View          viewmodel.Config
	SweepInterval time.Duration
	AgentMarkers  []string
}

// DefaultConfig returns the room defaults.
func DefaultConfig() Config {
	return Config{
		Reconcile:     reconcile.DefaultConfig(),
		View:          viewmodel.DefaultConfig(),
		SweepInterval: 3 * time.Second,
		AgentMarkers:  participant.DefaultMarkers,
	}
}

// Update is delivered to watchers after every change.
type Update struct {
	View  viewmodel.View         `json:"view"`
	State models.ConnectionState `json:"connectionState"`
}

// Option configures a Room.
type Option func(*Room)

// WithClock sets the base clock for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(r *Room) {
		r.base = c
	}
}

// WithPublisher sets the outbound event publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Room) {
		r.publisher = p
	}
}

// Room is a live interview room. All reconciler access happens on the loop
// goroutine; exported methods are safe for concurrent use.
type Room struct {
	id        string
	kind      string
	cfg       Config
	src       source.Source
	base      clock.Clock
	publisher Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger
	opened    time.Time

	queue     chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	outbox    chan any
	drained   chan struct{}
	state     atomic.Value

	// Owned by the loop goroutine.
	rec        *reconcile.Reconciler
	projector  *viewmodel.Projector
	classifier *participant.Classifier
	subs       []source.Subscription
	sweepTimer clock.Timer
	live       models.ConnectionState
	dirty      bool
	watchers   map[int]chan Update
	nextWatch  int
}

// New creates a room on src and starts its event loop. The room subscribes
// to src immediately; call Start to start the source itself.
func New(id, kind string, src source.Source, cfg Config, opts ...Option) *Room {
	r := &Room{
		id:       id,
		kind:     kind,
		cfg:      cfg,
		src:      src,
		base:     clock.Real{},
		metrics:  metrics.DefaultMetrics,
		log:      logging.WithRoomComponent(id, "room"),
		queue:    make(chan func(), queueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		outbox:   make(chan any, outboxSize),
		drained:  make(chan struct{}),
		watchers: make(map[int]chan Update),
	}
	for _, o := range opts {
		o(r)
	}
	r.opened = r.base.Now()

	r.classifier = participant.NewClassifier(cfg.AgentMarkers...)
	r.rec = reconcile.New(id, cfg.Reconcile,
		reconcile.WithClock(loopClock{base: r.base, post: r.post}),
		reconcile.WithClassifier(r.classifier),
		reconcile.WithListener(listener{r}),
	)
	r.projector = viewmodel.NewProjector(cfg.View, r.classifier)

	r.subs = append(r.subs,
		src.SubscribeTranscription(func(ev models.TranscriptionEvent) {
			r.post(func() { r.handleTranscription(ev) })
		}),
		src.SubscribeConnection(func(st models.ConnectionState) {
			r.post(func() { r.handleConnection(st) })
		}),
	)
	r.live = src.ConnectionState()
	r.state.Store(r.live)

	if cfg.SweepInterval > 0 {
		r.sweepTimer = r.base.AfterFunc(cfg.SweepInterval, r.postSweep)
	}

	r.metrics.RecordRoomOpened()
	r.log.Info().Str("source", kind).Str("connectionState", string(r.live)).Msg("Room opened")

	go r.run()
	go r.drain()
	return r
}

// Start starts the underlying source.
func (r *Room) Start(ctx context.Context) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	return r.src.Start(ctx)
}

// ID returns the room ID.
func (r *Room) ID() string { return r.id }

// Kind returns the source kind the room was opened with.
func (r *Room) Kind() string { return r.kind }

// Source returns the room's event source.
func (r *Room) Source() source.Source { return r.src }

// OpenedAt returns the time the room was created.
func (r *Room) OpenedAt() time.Time { return r.opened }

// ConnectionState returns the last connection state seen by the loop.
func (r *Room) ConnectionState() models.ConnectionState {
	return r.state.Load().(models.ConnectionState)
}

// post enqueues f on the loop. It returns false once the room is closing.
func (r *Room) post(f func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case <-r.done:
		return false
	case r.queue <- f:
		return true
	}
}

func (r *Room) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			r.teardown()
			return
		case f := <-r.queue:
			select {
			case <-r.done:
				r.teardown()
				return
			default:
			}
			f()
			r.flush()
		}
	}
}

func (r *Room) handleTranscription(ev models.TranscriptionEvent) {
	live := r.live.IsLive()
	r.metrics.RecordEvent(live)
	if !live {
		r.log.Debug().Str("connectionState", string(r.live)).Msg("Transcription event dropped while not connected")
		return
	}
	r.rec.Ingest(schema.Normalize(ev))
}

func (r *Room) handleConnection(st models.ConnectionState) {
	if st == r.live {
		return
	}
	prev := r.live
	r.live = st
	r.state.Store(st)
	r.dirty = true
	r.metrics.RecordConnectionChange(string(st))

	ev := r.log.Info().Str("from", string(prev)).Str("to", string(st))
	if !st.IsLive() {
		ev = ev.Int("timersSuspended", r.rec.Suspend())
	}
	ev.Msg("Connection state changed")
}

func (r *Room) postSweep() {
	r.post(r.sweep)
}

func (r *Room) sweep() {
	if n := r.rec.Sweep(); n > 0 {
		r.log.Debug().Int("evicted", n).Msg("Sweep evicted pending utterances")
	}
	r.sweepTimer = r.base.AfterFunc(r.cfg.SweepInterval, r.postSweep)
}

// flush renders once per handled event and pushes to watchers.
func (r *Room) flush() {
	if !r.dirty {
		return
	}
	r.dirty = false
	if len(r.watchers) == 0 {
		return
	}
	u := Update{View: r.projector.Render(r.rec.Snapshot()), State: r.live}
	for _, ch := range r.watchers {
		offer(ch, u)
		r.metrics.RecordViewPush()
	}
}

// offer delivers u, replacing an unread older update.
func offer(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

func (r *Room) teardown() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
	if r.sweepTimer != nil {
		r.sweepTimer.Stop()
		r.sweepTimer = nil
	}
	r.rec.Close()
	for id, ch := range r.watchers {
		close(ch)
		delete(r.watchers, id)
	}
	close(r.outbox)
}

// call runs f on the loop and waits for it.
func (r *Room) call(f func()) error {
	ran := make(chan struct{})
	if !r.post(func() { f(); close(ran) }) {
		return ErrRoomClosed
	}
	select {
	case <-ran:
		return nil
	case <-r.stopped:
		select {
		case <-ran:
			return nil
		default:
			return ErrRoomClosed
		}
	}
}

// Render returns the current view.
func (r *Room) Render() (viewmodel.View, error) {
	var v viewmodel.View
	err := r.call(func() { v = r.projector.Render(r.rec.Snapshot()) })
	return v, err
}

// Snapshot returns a copy of the reconciler state.
func (r *Room) Snapshot() (reconcile.Snapshot, error) {
	var s reconcile.Snapshot
	err := r.call(func() { s = r.rec.Snapshot() })
	return s, err
}

// Watch registers for view updates. The current view is delivered first.
// Slow watchers only see the latest update. The channel is closed when the
// room closes; cancel releases the registration early.
func (r *Room) Watch() (<-chan Update, func(), error) {
	ch := make(chan Update, 1)
	var id int
	err := r.call(func() {
		r.nextWatch++
		id = r.nextWatch
		r.watchers[id] = ch
		ch <- Update{View: r.projector.Render(r.rec.Snapshot()), State: r.live}
		r.metrics.RecordViewerConnected()
	})
	if err != nil {
		return nil, func() {}, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.post(func() {
				if _, ok := r.watchers[id]; ok {
					delete(r.watchers, id)
					close(ch)
				}
			})
			r.metrics.RecordViewerDisconnected()
		})
	}
	return ch, cancel, nil
}

// Close tears the room down: subscriptions are released, timers cancelled,
// the source closed and queued events published. Safe to call more than once.
func (r *Room) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		<-r.stopped
		err = r.src.Close()
		<-r.drained

		r.state.Store(models.ConnectionDisconnected)
		r.metrics.RecordRoomClosed(r.base.Now().Sub(r.opened).Seconds())
		r.log.Info().Msg("Room closed")
	})
	return err
}

// Done is closed once the room starts closing.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// enqueue hands an event to the publisher goroutine without blocking the loop.
func (r *Room) enqueue(ev any) {
	if r.publisher == nil {
		return
	}
	select {
	case r.outbox <- ev:
	default:
		r.log.Warn().Msg("Publish queue full, dropping transcript event")
	}
}

func (r *Room) drain() {
	defer close(r.drained)
	for ev := range r.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		var err error
		switch e := ev.(type) {
		case models.TranscriptPending:
			err = r.publisher.PublishPending(ctx, e)
		case models.TranscriptFinal:
			err = r.publisher.PublishFinal(ctx, e)
		}
		cancel()
		if err != nil {
			r.log.Warn().Err(err).Msg("Failed to publish transcript event")
		}
	}
}

// listener adapts reconciler notifications to room side effects.
type listener struct {
	r *Room
}

func (l listener) EntryAppended(entry models.TranscriptEntry, cause reconcile.Cause) {
	r := l.r
	r.dirty = true
	r.enqueue(models.TranscriptFinal{
		EventType:     models.EventTypeFinal,
		RoomID:        r.id,
		EntryID:       entry.ID,
		ParticipantID: entry.ParticipantID,
		Role:          string(r.classifier.Role(entry.ParticipantID)),
		Text:          entry.Text,
		Cause:         string(cause),
		Timestamp:     entry.Timestamp.UnixMilli(),
	})
}

func (l listener) PendingUpdated(p models.PendingUtterance) {
	r := l.r
	r.dirty = true
	r.enqueue(models.TranscriptPending{
		EventType:     models.EventTypePending,
		RoomID:        r.id,
		ParticipantID: p.ParticipantID,
		TrackID:       p.TrackID,
		Text:          p.Text,
		Timestamp:     p.LastUpdate.UnixMilli(),
	})
}

func (l listener) PendingRemoved(p models.PendingUtterance, reason reconcile.RemovalReason) {
	r := l.r
	r.dirty = true
	r.enqueue(models.TranscriptPending{
		EventType:     models.EventTypePending,
		RoomID:        r.id,
		ParticipantID: p.ParticipantID,
		TrackID:       p.TrackID,
		Text:          p.Text,
		Removed:       true,
		Reason:        string(reason),
		Timestamp:     r.base.Now().UnixMilli(),
	})
}

// loopClock schedules timer callbacks onto the room loop.
type loopClock struct {
	base clock.Clock
	post func(func()) bool
}

func (c loopClock) Now() time.Time { return c.base.Now() }

func (c loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.base.AfterFunc(d, func() { c.post(f) })
}
