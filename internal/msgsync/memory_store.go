package msgsync

import (
	"context"
	"sort"
	"sync"
	"time"

	"inappkit/internal/messaging"
	"inappkit/internal/types"
)

var (
	_ Source             = (*MemoryStore)(nil)
	_ messaging.Notifier = (*MemoryStore)(nil)
)

// MemoryStore is a process-local message store used when no database is
// configured. It mirrors the database repository: Fetch returns pending
// payloads oldest first, and consume or remove retires a message for good.
type MemoryStore struct {
	clock types.Clock

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	payload   []byte
	createdAt time.Time
	retired   bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clock types.Clock) *MemoryStore {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &MemoryStore{clock: clock, entries: make(map[string]*memoryEntry)}
}

// Store inserts or replaces a payload. Replacing a retired message does not
// revive it. A zero createdAt means now.
func (s *MemoryStore) Store(_ context.Context, messageID string, payload []byte, _ float64, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := append([]byte(nil), payload...)
	if e, ok := s.entries[messageID]; ok {
		e.payload = data
		return nil
	}
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}
	s.entries[messageID] = &memoryEntry{payload: data, createdAt: createdAt}
	return nil
}

// Fetch returns the pending payloads ordered by creation time, then id.
func (s *MemoryStore) Fetch(_ context.Context) ([]RawPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type pending struct {
		id string
		e  *memoryEntry
	}
	var list []pending
	for id, e := range s.entries {
		if !e.retired {
			list = append(list, pending{id: id, e: e})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].e.createdAt.Equal(list[j].e.createdAt) {
			return list[i].e.createdAt.Before(list[j].e.createdAt)
		}
		return list[i].id < list[j].id
	})

	out := make([]RawPayload, 0, len(list))
	for _, p := range list {
		out = append(out, RawPayload{Origin: "memory:" + p.id, Data: append([]byte(nil), p.e.payload...)})
	}
	return out, nil
}

// NotifyConsumed retires the message. Unknown ids are ignored.
func (s *MemoryStore) NotifyConsumed(_ context.Context, messageID string) error {
	s.retire(messageID)
	return nil
}

// NotifyRemoved retires the message. Unknown ids are ignored.
func (s *MemoryStore) NotifyRemoved(_ context.Context, messageID string) error {
	s.retire(messageID)
	return nil
}

func (s *MemoryStore) retire(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[messageID]; ok {
		e.retired = true
	}
}
