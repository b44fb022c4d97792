package messaging

import (
	"sync"

	"inappkit/internal/types"
)

// stateRecord is the lifecycle state of one message. Every transition runs
// under mu, so at most one transition per message is in flight. A removed
// record rejects all further transitions.
type stateRecord struct {
	mu      sync.Mutex
	state   types.MessageState
	removed bool
}

// transition applies fn to the state. ok is false when the record has been
// removed; changed reports whether fn altered the state.
func (r *stateRecord) transition(fn func(s *types.MessageState)) (changed bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return false, false
	}
	before := r.state
	fn(&r.state)
	return r.state != before, true
}

// snapshot returns a copy of the current state.
func (r *stateRecord) snapshot() types.MessageState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// stateTable maps message IDs to their state records.
type stateTable struct {
	mu      sync.RWMutex
	records map[string]*stateRecord
}

func newStateTable() *stateTable {
	return &stateTable{records: make(map[string]*stateRecord)}
}

// ensure returns the record for id, creating it with seed when absent.
func (t *stateTable) ensure(id string, seed types.MessageState) *stateRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.records[id]; ok {
		return r
	}
	r := &stateRecord{state: seed}
	t.records[id] = r
	return r
}

func (t *stateTable) get(id string) (*stateRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[id]
	return r, ok
}

// drop tombstones and forgets the record for id. It waits for any
// transition in flight on that record. Reports whether a record existed.
func (t *stateTable) drop(id string) bool {
	t.mu.Lock()
	r, ok := t.records[id]
	delete(t.records, id)
	t.mu.Unlock()

	if !ok {
		return false
	}
	r.mu.Lock()
	r.removed = true
	r.mu.Unlock()
	return true
}
