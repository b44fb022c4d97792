package messaging

import (
	"sync"
	"time"

	"inappkit/internal/types"
)

// listed pairs a stored message with a copy of its state.
type listed[M any] struct {
	msg   M
	state types.MessageState
}

// messageList is the ordered message set owned by a manager. Order is
// arrival order: messages already known keep their position across
// refreshes and new ones are appended.
type messageList[M any] struct {
	mu     sync.RWMutex
	order  []string
	items  map[string]M
	coreOf func(M) types.MessageCore
	states *stateTable
}

func newMessageList[M any](coreOf func(M) types.MessageCore) *messageList[M] {
	return &messageList[M]{
		items:  make(map[string]M),
		coreOf: coreOf,
		states: newStateTable(),
	}
}

// replace reconciles the list with a refresh. Known messages keep their
// stored value and state, vanished ones are dropped, and new ones are
// appended with state seeded from seed. Duplicate IDs in incoming keep the
// first occurrence. Returns the IDs that were added.
func (l *messageList[M]) replace(incoming []M, seed func(M) types.MessageState) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]struct{}, len(incoming))
	fresh := make([]M, 0, len(incoming))
	for _, m := range incoming {
		id := l.coreOf(m).MessageID
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, m)
	}

	order := make([]string, 0, len(fresh))
	for _, id := range l.order {
		if _, keep := seen[id]; keep {
			order = append(order, id)
			continue
		}
		delete(l.items, id)
		l.states.drop(id)
	}

	var added []string
	for _, m := range fresh {
		id := l.coreOf(m).MessageID
		if _, known := l.items[id]; known {
			continue
		}
		l.items[id] = m
		l.states.ensure(id, seed(m))
		order = append(order, id)
		added = append(added, id)
	}
	l.order = order
	return added
}

// lookup returns the stored message and its state record.
func (l *messageList[M]) lookup(id string) (M, *stateRecord, bool) {
	l.mu.RLock()
	m, ok := l.items[id]
	l.mu.RUnlock()
	if !ok {
		var zero M
		return zero, nil, false
	}
	rec, ok := l.states.get(id)
	if !ok {
		var zero M
		return zero, nil, false
	}
	return m, rec, true
}

// remove drops id from the list and tombstones its state. Reports whether
// the message was present.
func (l *messageList[M]) remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, present := l.items[id]; !present {
		return false
	}
	delete(l.items, id)
	l.order = deleteID(l.order, id)
	l.states.drop(id)
	return true
}

// pruneExpired drops every message expired at now and returns their IDs.
func (l *messageList[M]) pruneExpired(now time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []string
	kept := l.order[:0]
	for _, id := range l.order {
		if l.coreOf(l.items[id]).IsExpired(now) {
			expired = append(expired, id)
			delete(l.items, id)
			l.states.drop(id)
			continue
		}
		kept = append(kept, id)
	}
	l.order = kept
	return expired
}

// snapshot returns every message in order with a copy of its state.
func (l *messageList[M]) snapshot() []listed[M] {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]listed[M], 0, len(l.order))
	for _, id := range l.order {
		rec, ok := l.states.get(id)
		if !ok {
			continue
		}
		out = append(out, listed[M]{msg: l.items[id], state: rec.snapshot()})
	}
	return out
}

func (l *messageList[M]) count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func deleteID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
