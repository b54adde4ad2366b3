package quota

import (
	"context"
	"sync"
	"time"
)

type event struct {
	at     time.Time
	tokens int
}

// MemoryStore keeps quota events in memory. It does not survive restarts;
// use the sqlite store in production.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string][]event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]event)}
}

func (s *MemoryStore) Record(ctx context.Context, tierID string, at time.Time, tokens int) error {
	s.mu.Lock()
	s.events[tierID] = append(s.events[tierID], event{at: at, tokens: tokens})
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CountSince(ctx context.Context, tierID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events[tierID] {
		if !e.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TokensSince(ctx context.Context, tierID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events[tierID] {
		if !e.at.Before(since) {
			n += e.tokens
		}
	}
	return n, nil
}

func (s *MemoryStore) Prune(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tier, evs := range s.events {
		kept := evs[:0]
		for _, e := range evs {
			if !e.at.Before(before) {
				kept = append(kept, e)
			}
		}
		s.events[tier] = kept
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
