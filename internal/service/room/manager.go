package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/service/source"
)

// SourceFactory builds the event source for a new room.
type SourceFactory func(roomID, kind string) (source.Source, error)

// Info describes an open room.
type Info struct {
	ID              string                 `json:"id"`
	Source          string                 `json:"source"`
	ConnectionState models.ConnectionState `json:"connectionState"`
	OpenedAt        time.Time              `json:"openedAt"`
}

// Manager owns the set of open rooms.
type Manager struct {
	ctx     context.Context
	cfg     Config
	factory SourceFactory
	opts    []Option

	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool
}

// NewManager creates a manager. Sources are started with ctx, so it should
// live as long as the process.
func NewManager(ctx context.Context, cfg Config, factory SourceFactory, opts ...Option) *Manager {
	return &Manager{
		ctx:     ctx,
		cfg:     cfg,
		factory: factory,
		opts:    opts,
		rooms:   make(map[string]*Room),
	}
}

// Open creates and starts a room. An empty id gets a generated one.
func (m *Manager) Open(id, kind string) (*Room, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrRoomClosed
	}
	if _, ok := m.rooms[id]; ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, id)
	}
	// Reserve the ID while the source starts.
	m.rooms[id] = nil
	m.mu.Unlock()

	r, err := m.start(id, kind)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		delete(m.rooms, id)
		return nil, err
	}
	if m.closed {
		delete(m.rooms, id)
		go r.Close()
		return nil, ErrRoomClosed
	}
	m.rooms[id] = r
	return r, nil
}

func (m *Manager) start(id, kind string) (*Room, error) {
	src, err := m.factory(id, kind)
	if err != nil {
		return nil, fmt.Errorf("create %s source: %w", kind, err)
	}
	r := New(id, kind, src, m.cfg, m.opts...)
	if err := r.Start(m.ctx); err != nil {
		r.Close()
		return nil, fmt.Errorf("start %s source: %w", kind, err)
	}
	return r, nil
}

// Get returns an open room.
func (m *Manager) Get(id string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.rooms[id]
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// List returns the open rooms ordered by ID.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r == nil {
			continue
		}
		out = append(out, Info{
			ID:              r.ID(),
			Source:          r.Kind(),
			ConnectionState: r.ConnectionState(),
			OpenedAt:        r.OpenedAt(),
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close tears down one room.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	r := m.rooms[id]
	if r == nil {
		m.mu.Unlock()
		return ErrRoomNotFound
	}
	delete(m.rooms, id)
	m.mu.Unlock()

	return r.Close()
}

// CloseAll tears down every room and rejects further opens.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for id, r := range m.rooms {
		if r != nil {
			rooms = append(rooms, r)
		}
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func(r *Room) {
			defer wg.Done()
			if err := r.Close(); err != nil {
				log.Warn().Err(err).Str("roomId", r.ID()).Msg("Error closing room")
			}
		}(r)
	}
	wg.Wait()
	log.Info().Int("rooms", len(rooms)).Msg("All rooms closed")
}

// Len returns the number of open rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, r := range m.rooms {
		if r != nil {
			n++
		}
	}
	return n
}
