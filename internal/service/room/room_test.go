package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interview-transcript-service/internal/clock/fake"
	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/service/source"
	"interview-transcript-service/internal/service/source/push"
	"interview-transcript-service/internal/service/viewmodel"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu      sync.Mutex
	pending []models.TranscriptPending
	finals  []models.TranscriptFinal
}

func (p *recordingPublisher) PublishPending(ctx context.Context, ev models.TranscriptPending) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, ev)
	return nil
}

func (p *recordingPublisher) PublishFinal(ctx context.Context, ev models.TranscriptFinal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finals = append(p.finals, ev)
	return nil
}

type harness struct {
	t   *testing.T
	clk *fake.Clock
	src *push.Source
	pub *recordingPublisher
	r   *Room
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		clk: fake.New(t0),
		src: push.New(),
		pub: &recordingPublisher{},
	}
	h.r = New("room-1", "push", h.src, DefaultConfig(), WithClock(h.clk), WithPublisher(h.pub))
	if err := h.r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { h.r.Close() })
	return h
}

func (h *harness) say(identity, text string, final bool) {
	h.t.Helper()
	err := h.src.EmitEvent(models.TranscriptionEvent{
		Segments:    []models.WireSegment{{Text: text, Final: final}},
		Participant: &models.ParticipantInfo{Identity: identity},
	})
	if err != nil {
		h.t.Fatalf("emit: %v", err)
	}
}

// step advances the clock and waits for the loop to process what fired.
func (h *harness) step(d time.Duration) {
	h.t.Helper()
	for d > 0 {
		inc := 250 * time.Millisecond
		if d < inc {
			inc = d
		}
		h.clk.Advance(inc)
		h.render()
		d -= inc
	}
}

func (h *harness) render() viewmodel.View {
	h.t.Helper()
	v, err := h.r.Render()
	if err != nil {
		h.t.Fatalf("render: %v", err)
	}
	return v
}

func TestRoom_FinalSegmentAppendsEntry(t *testing.T) {
	h := newHarness(t)

	h.say("agent-1", "Tell me about yourself", true)
	v := h.render()

	if len(v.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(v.Messages))
	}
	if v.Messages[0].Label != "Interviewer" {
		t.Errorf("expected Interviewer label, got %s", v.Messages[0].Label)
	}
	if len(v.Pending) != 0 {
		t.Errorf("expected no pending, got %d", len(v.Pending))
	}
}

func TestRoom_PartialPromotesAfterUserDelay(t *testing.T) {
	h := newHarness(t)

	h.say("candidate-1", "I led the payments migration", false)
	v := h.render()
	if len(v.Pending) != 1 || v.Pending[0].Label != "Candidate" {
		t.Fatalf("expected one candidate pending, got %+v", v.Pending)
	}

	h.step(1250 * time.Millisecond)
	if v := h.render(); len(v.Messages) != 0 {
		t.Fatalf("promoted before user delay: %+v", v.Messages)
	}

	h.step(500 * time.Millisecond)
	v = h.render()
	if len(v.Messages) != 1 || v.Messages[0].Text != "I led the payments migration" {
		t.Fatalf("expected promoted entry, got %+v", v.Messages)
	}
	if len(v.Pending) != 0 {
		t.Errorf("expected pending cleared, got %+v", v.Pending)
	}
}

func TestRoom_AgentWaitsLonger(t *testing.T) {
	h := newHarness(t)

	h.say("agent-1", "Walk me through the design", false)
	h.step(2 * time.Second)
	if v := h.render(); len(v.Messages) != 0 {
		t.Fatalf("agent promoted at user delay: %+v", v.Messages)
	}
	h.step(1250 * time.Millisecond)
	if v := h.render(); len(v.Messages) != 1 {
		t.Fatalf("expected agent promotion after agent delay, got %d", len(v.Messages))
	}
}

func TestRoom_DisconnectSuspendsAndGates(t *testing.T) {
	h := newHarness(t)

	h.say("candidate-1", "So the main tradeoff was", false)
	h.render()
	if err := h.src.SetConnectionState(models.ConnectionDisconnected); err != nil {
		t.Fatalf("set state: %v", err)
	}
	h.render()
	if h.r.ConnectionState() != models.ConnectionDisconnected {
		t.Fatalf("expected disconnected, got %s", h.r.ConnectionState())
	}

	// Gated: ignored while disconnected.
	h.say("candidate-1", "this should never appear", true)

	h.step(2 * time.Second)
	v := h.render()
	if len(v.Messages) != 0 {
		t.Fatalf("expected no promotion while suspended, got %+v", v.Messages)
	}
	if len(v.Pending) != 1 {
		t.Fatalf("expected pending kept while suspended, got %d", len(v.Pending))
	}

	// Sweep runs every 3s; the 8s horizon is crossed at the 9s sweep.
	h.step(7 * time.Second)
	v = h.render()
	if len(v.Pending) != 0 {
		t.Errorf("expected stale pending evicted, got %+v", v.Pending)
	}
	if len(v.Messages) != 0 {
		t.Errorf("eviction must not promote, got %+v", v.Messages)
	}
}

func TestRoom_ReconnectResumesIngestion(t *testing.T) {
	h := newHarness(t)

	h.src.SetConnectionState(models.ConnectionReconnecting)
	h.say("candidate-1", "lost words", true)
	h.src.SetConnectionState(models.ConnectionConnected)
	h.say("candidate-1", "kept words", true)

	v := h.render()
	if len(v.Messages) != 1 || v.Messages[0].Text != "kept words" {
		t.Errorf("expected only post-reconnect entry, got %+v", v.Messages)
	}
}

func TestRoom_WatchReceivesUpdates(t *testing.T) {
	h := newHarness(t)

	ch, cancel, err := h.r.Watch()
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()

	first := <-ch
	if len(first.View.Messages) != 0 || first.State != models.ConnectionConnected {
		t.Fatalf("unexpected initial update %+v", first)
	}

	h.say("agent-1", "Any questions for me?", true)
	h.render()

	select {
	case u := <-ch:
		if len(u.View.Messages) != 1 {
			t.Errorf("expected 1 message in update, got %d", len(u.View.Messages))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestRoom_CloseReleasesEverything(t *testing.T) {
	h := newHarness(t)

	ch, cancel, err := h.r.Watch()
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer cancel()
	<-ch

	h.say("candidate-1", "Half a thought", false)
	h.render()

	if err := h.r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	h.r.Close()

	if n := h.src.Subscribers(); n != 0 {
		t.Errorf("expected subscriptions released, got %d", n)
	}
	if h.clk.Pending() != 0 {
		t.Errorf("expected no live timers after close, got %d", h.clk.Pending())
	}
	if _, err := h.r.Render(); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("expected ErrRoomClosed, got %v", err)
	}
	if _, _, err := h.r.Watch(); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("expected ErrRoomClosed from Watch, got %v", err)
	}

	// Drain whatever was buffered; the channel must close.
	for range ch {
	}

	// Late events and timers are no-ops.
	h.clk.Advance(time.Minute)
	if err := h.src.EmitEvent(models.TranscriptionEvent{}); !errors.Is(err, push.ErrClosed) {
		t.Errorf("expected closed source, got %v", err)
	}
}

func TestRoom_PublishesPendingAndFinal(t *testing.T) {
	h := newHarness(t)

	h.say("candidate-1", "I would shard by tenant", false)
	h.say("candidate-1", "I would shard by tenant id", true)
	h.render()
	h.r.Close()

	h.pub.mu.Lock()
	defer h.pub.mu.Unlock()

	if len(h.pub.finals) != 1 {
		t.Fatalf("expected 1 final event, got %d", len(h.pub.finals))
	}
	f := h.pub.finals[0]
	if f.EventType != models.EventTypeFinal || f.RoomID != "room-1" || f.Role != "candidate" || f.Cause != "final" {
		t.Errorf("unexpected final event %+v", f)
	}

	if len(h.pub.pending) != 2 {
		t.Fatalf("expected update + removal pending events, got %d", len(h.pub.pending))
	}
	if h.pub.pending[0].Removed {
		t.Error("first pending event should be an update")
	}
	if !h.pub.pending[1].Removed || h.pub.pending[1].Reason != "promoted" {
		t.Errorf("expected promoted removal, got %+v", h.pub.pending[1])
	}
}

func TestLoopClock_PostsOntoQueue(t *testing.T) {
	clk := fake.New(t0)
	var posted []func()
	lc := loopClock{base: clk, post: func(f func()) bool {
		posted = append(posted, f)
		return true
	}}

	ran := false
	lc.AfterFunc(time.Second, func() { ran = true })
	clk.Advance(time.Second)

	if ran {
		t.Fatal("callback must not run on the timer goroutine")
	}
	if len(posted) != 1 {
		t.Fatalf("expected 1 posted callback, got %d", len(posted))
	}
	posted[0]()
	if !ran {
		t.Error("posted callback did not run")
	}
	if !lc.Now().Equal(t0.Add(time.Second)) {
		t.Errorf("unexpected Now %v", lc.Now())
	}
}

var _ source.Source = (*push.Source)(nil)
