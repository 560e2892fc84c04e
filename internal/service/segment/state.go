// Package segment provides the pending-utterance lifecycle and entry ID generation.
package segment

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of a pending key.
type State int

const (
	// StateAbsent - No speech in progress for the key.
	StateAbsent State = iota
	// StatePending - Partial text received, promotion timer armed.
	StatePending
	// StatePromoted - Pending text was appended to the final log.
	StatePromoted
	// StateEvicted - Pending text was discarded by the staleness sweep.
	// "Silence > stale data": an evicted utterance never reaches the log.
	StateEvicted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "ABSENT"
	case StatePending:
		return "PENDING"
	case StatePromoted:
		return "PROMOTED"
	case StateEvicted:
		return "EVICTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (PROMOTED or EVICTED).
// Terminal states behave exactly like ABSENT: a new partial starts a fresh cycle.
func (s State) IsTerminal() bool {
	return s == StatePromoted || s == StateEvicted
}

// Errors for invalid state transitions.
var (
	ErrNotPending = errors.New("key is not pending")
	ErrStaleTimer = errors.New("timer generation is stale")
)

// Lifecycle manages the state machine for a single pending key.
// It is owned by the reconciler loop and is not safe for concurrent use.
//
// State transitions:
//
//	ABSENT ──Touch()──→ PENDING ──Promote(gen)──→ PROMOTED
//	                      │  ↺ Touch() (new generation)
//	                      └──Evict()──→ EVICTED
//
// Rules:
//   - Touch: allowed from any state, always lands in PENDING with a new generation
//   - Promote: only from PENDING and only for the current generation
//   - Evict: only from PENDING; no-op otherwise
type Lifecycle struct {
	key        string
	state      State
	generation uint64
}

// NewLifecycle creates a new lifecycle in ABSENT state.
func NewLifecycle(key string) *Lifecycle {
	return &Lifecycle{
		key:   key,
		state: StateAbsent,
	}
}

// Key returns the pending key.
func (l *Lifecycle) Key() string {
	return l.key
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Generation returns the generation of the most recent Touch.
func (l *Lifecycle) Generation() uint64 {
	return l.generation
}

// IsPending returns true if the key currently holds speech in progress.
func (l *Lifecycle) IsPending() bool {
	return l.state == StatePending
}

// Touch records new partial activity and returns the generation that a
// promotion timer armed for this activity must present to Promote.
func (l *Lifecycle) Touch() uint64 {
	l.generation++
	l.state = StatePending
	return l.generation
}

// Promote validates and transitions to PROMOTED.
// Returns ErrNotPending if nothing is pending and ErrStaleTimer if newer
// activity superseded the timer that is trying to promote.
func (l *Lifecycle) Promote(generation uint64) error {
	switch {
	case l.state != StatePending:
		return ErrNotPending
	case generation != l.generation:
		return ErrStaleTimer
	}
	l.state = StatePromoted
	return nil
}

// Finalize transitions to PROMOTED for an explicit final segment, regardless
// of the current generation. Returns true if the key was pending.
func (l *Lifecycle) Finalize() bool {
	wasPending := l.state == StatePending
	l.generation++
	l.state = StatePromoted
	return wasPending
}

// Evict transitions to EVICTED.
// Returns true if the key was evicted, false if it was not pending.
func (l *Lifecycle) Evict() bool {
	if l.state != StatePending {
		return false
	}
	l.generation++
	l.state = StateEvicted
	return true
}
