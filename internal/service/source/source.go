// Package source defines the Session Event Source collaborator: the media
// session that delivers transcription batches and connection state changes.
package source

import (
	"context"
	"sync"

	"interview-transcript-service/internal/models"
)

// TranscriptionHandler receives transcription batches.
type TranscriptionHandler func(models.TranscriptionEvent)

// ConnectionHandler receives connection state changes.
type ConnectionHandler func(models.ConnectionState)

// Subscription is a handler registration. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Source is a media session event source.
type Source interface {
	// Start begins delivering events. It returns once the source is running;
	// delivery continues until ctx is cancelled or Close is called.
	Start(ctx context.Context) error

	SubscribeTranscription(h TranscriptionHandler) Subscription
	SubscribeConnection(h ConnectionHandler) Subscription

	// ConnectionState returns the current session state.
	ConnectionState() models.ConnectionState

	// Close stops delivery and releases resources. Safe to call more than once.
	Close() error
}

// Broker fans events out to subscribers and tracks connection state.
// Source implementations embed it. Handlers are invoked outside the lock.
type Broker struct {
	mu            sync.RWMutex
	nextID        int
	transcription map[int]TranscriptionHandler
	connection    map[int]ConnectionHandler
	state         models.ConnectionState
}

// NewBroker returns a broker in the given initial state.
func NewBroker(initial models.ConnectionState) *Broker {
	return &Broker{
		transcription: make(map[int]TranscriptionHandler),
		connection:    make(map[int]ConnectionHandler),
		state:         initial,
	}
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

// SubscribeTranscription registers h for transcription batches.
func (b *Broker) SubscribeTranscription(h TranscriptionHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.transcription[id] = h
	return &subscription{fn: func() {
		b.mu.Lock()
		delete(b.transcription, id)
		b.mu.Unlock()
	}}
}

// SubscribeConnection registers h for connection state changes.
func (b *Broker) SubscribeConnection(h ConnectionHandler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.connection[id] = h
	return &subscription{fn: func() {
		b.mu.Lock()
		delete(b.connection, id)
		b.mu.Unlock()
	}}
}

// ConnectionState returns the last state set.
func (b *Broker) ConnectionState() models.ConnectionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Publish delivers ev to every transcription subscriber.
func (b *Broker) Publish(ev models.TranscriptionEvent) {
	b.mu.RLock()
	handlers := make([]TranscriptionHandler, 0, len(b.transcription))
	for _, h := range b.transcription {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// SetState records a new connection state and notifies subscribers if it changed.
func (b *Broker) SetState(state models.ConnectionState) {
	b.mu.Lock()
	if b.state == state {
		b.mu.Unlock()
		return
	}
	b.state = state
	handlers := make([]ConnectionHandler, 0, len(b.connection))
	for _, h := range b.connection {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.transcription) + len(b.connection)
}
