// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package startup provides a single-flight guard so that only one
// concurrent startup attempt per logical entity id is admitted at a
// time.
package startup

import "sync"

// Status is the lifecycle state of an entity's in-flight startup.
type Status string

const (
	Starting Status = "Starting"
	Started  Status = "Started"
	Failed   Status = "Failed"
)

// StateChange is emitted on every successful transition.
type StateChange struct {
	EntityID string
	Status   Status
	Err      error
}

type entry struct {
	status Status
	err    error
}

// Tracker is the single-flight map entityId -> {status, error}.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
	changes chan StateChange
}

const changeBufferSize = 256

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		entries: make(map[string]*entry),
		changes: make(chan StateChange, changeBufferSize),
	}
}

// Changes returns the channel of state-change notifications.
func (t *Tracker) Changes() <-chan StateChange { return t.changes }

func (t *Tracker) emit(c StateChange) {
	select {
	case t.changes <- c:
	default:
		select {
		case <-t.changes:
		default:
		}
		select {
		case t.changes <- c:
		default:
		}
	}
}

// TryMarkAsStarting atomically inserts {Starting} for entityID. Returns
// true iff no prior entry existed. On success it emits a state-changed
// notification; on collision it returns false silently.
func (t *Tracker) TryMarkAsStarting(entityID string) bool {
	t.mu.Lock()
	if _, exists := t.entries[entityID]; exists {
		t.mu.Unlock()
		return false
	}
	t.entries[entityID] = &entry{status: Starting}
	t.mu.Unlock()

	t.emit(StateChange{EntityID: entityID, Status: Starting})
	return true
}

// MarkAsStarted transitions an existing entry to Started. No-op if no
// entry exists (the caller is expected to have called TryMarkAsStarting
// first).
func (t *Tracker) MarkAsStarted(entityID string) {
	t.mu.Lock()
	e, exists := t.entries[entityID]
	if !exists {
		t.mu.Unlock()
		return
	}
	e.status = Started
	e.err = nil
	t.mu.Unlock()

	t.emit(StateChange{EntityID: entityID, Status: Started})
}

// MarkAsFailed transitions an existing entry to Failed, recording err.
func (t *Tracker) MarkAsFailed(entityID string, err error) {
	t.mu.Lock()
	e, exists := t.entries[entityID]
	if !exists {
		t.mu.Unlock()
		return
	}
	e.status = Failed
	e.err = err
	t.mu.Unlock()

	t.emit(StateChange{EntityID: entityID, Status: Failed, Err: err})
}

// IsStarting reports whether entityID currently has a Starting entry.
func (t *Tracker) IsStarting(entityID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exists := t.entries[entityID]
	return exists && e.status == Starting
}

// Clear removes entityID's entry. A subsequent TryMarkAsStarting will
// succeed. This is the only operation that reopens the single-flight gate
// after Started or Failed — an explicit retry policy.
func (t *Tracker) Clear(entityID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, entityID)
}
