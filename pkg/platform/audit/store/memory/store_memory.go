// Package memory keeps audit events in process, for the memory backend and tests.
package memory

import (
	"context"
	"sync"

	audit "safepilgrim/pkg/platform/audit"
)

// DefaultLimit is the number of events kept when no limit is given.
const DefaultLimit = 10000

// InMemoryStore is a bounded ring of audit events. Once full, each append
// evicts the oldest event.
type InMemoryStore struct {
	mu        sync.RWMutex
	ring      []audit.Event
	first     uint64 // sequence number of the oldest retained event
	next      uint64 // sequence number the next append gets
	bySubject map[string][]uint64
}

type Option func(*InMemoryStore)

// WithLimit sets how many events are retained. Non-positive values keep the default.
func WithLimit(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.ring = make([]audit.Event, n)
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{bySubject: make(map[string][]uint64)}
	for _, opt := range opts {
		opt(s)
	}
	if s.ring == nil {
		s.ring = make([]audit.Event, DefaultLimit)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next-s.first == uint64(len(s.ring)) {
		s.evictOldestLocked()
	}
	s.ring[s.next%uint64(len(s.ring))] = event
	s.bySubject[event.Subject] = append(s.bySubject[event.Subject], s.next)
	s.next++
	return nil
}

// evictOldestLocked drops the oldest event, which is also the oldest of its subject.
func (s *InMemoryStore) evictOldestLocked() {
	slot := s.first % uint64(len(s.ring))
	subject := s.ring[slot].Subject
	if seqs := s.bySubject[subject][1:]; len(seqs) > 0 {
		s.bySubject[subject] = seqs
	} else {
		delete(s.bySubject, subject)
	}
	s.ring[slot] = audit.Event{}
	s.first++
}

// ListBySubject returns a digital ID's retained events in append order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seqs := s.bySubject[subject]
	out := make([]audit.Event, 0, len(seqs))
	for _, seq := range seqs {
		out = append(out, s.ring[seq%uint64(len(s.ring))])
	}
	return out, nil
}

// Len reports how many events are retained.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.next - s.first)
}
