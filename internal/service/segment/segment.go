package segment

import (
	"fmt"
	"sync/atomic"
)

// Generator hands out transcript entry IDs for one room. IDs are never
// reused, so a caller can treat them as stable keys for log entries.
type Generator struct {
	roomID string
	issued atomic.Uint64
}

// NewGenerator creates a generator scoped to roomID.
func NewGenerator(roomID string) *Generator {
	return &Generator{roomID: roomID}
}

// Next returns the next entry ID, e.g. "room-1-entry-3".
func (g *Generator) Next() string {
	return fmt.Sprintf("%s-entry-%d", g.roomID, g.issued.Add(1))
}

// Issued returns how many IDs have been handed out.
func (g *Generator) Issued() uint64 {
	return g.issued.Load()
}
