package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"safepilgrim/internal/digitalid/models"
	"safepilgrim/pkg/platform/sentinel"
)

// ErrNotFound is returned when no record exists for a digital ID.
var ErrNotFound = sentinel.ErrNotFound

type memoryEntry struct {
	record    models.Record
	expiresAt time.Time
}

// InMemoryStore keeps issued records in process memory. The single mutex also
// serialises anchors on the same digital ID.
//
// Records expire ttl after they are saved, like the Redis backend, and the
// oldest record is evicted once capacity is reached. Anchors keep the original
// expiry.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  map[string]memoryEntry
	order    []string // save order; expiry is monotonic along it
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithTTL expires records d after they are saved. Zero keeps them forever.
func WithTTL(d time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithCapacity bounds the number of live records. Zero is unbounded.
func WithCapacity(n int) MemoryOption {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithMemoryClock overrides time.Now, for tests.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		records: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Save(_ context.Context, record models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if _, ok := s.liveLocked(record.DigitalID, now); ok {
		return sentinel.ErrConflict
	}
	s.evictLocked(now)
	entry := memoryEntry{record: clone(record)}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.records[record.DigitalID] = entry
	s.order = append(s.order, record.DigitalID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, digitalID string) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.liveLocked(digitalID, s.now()); ok {
		return clone(entry.record), nil
	}
	return models.Record{}, ErrNotFound
}

func (s *InMemoryStore) Anchor(_ context.Context, digitalID, hash string, updates models.FieldUpdates, at time.Time) (models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(digitalID, s.now())
	if !ok {
		return models.Record{}, ErrNotFound
	}
	entry.record.Anchor(hash, updates, at)
	s.records[digitalID] = entry
	return clone(entry.record), nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, digitalID string, status models.RecordStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.liveLocked(digitalID, s.now())
	if !ok {
		return ErrNotFound
	}
	entry.record.Status = status
	entry.record.UpdatedAt = at
	s.records[digitalID] = entry
	return nil
}

// Len reports the number of records held, including expired ones not yet swept.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ping always succeeds for the in-memory store.
func (s *InMemoryStore) Ping(_ context.Context) error { return nil }

func (s *InMemoryStore) liveLocked(digitalID string, now time.Time) (memoryEntry, bool) {
	entry, ok := s.records[digitalID]
	if !ok || (!entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)) {
		return memoryEntry{}, false
	}
	return entry, true
}

// evictLocked drops expired records from the front of the save order, then
// the oldest records until one more fits.
func (s *InMemoryStore) evictLocked(now time.Time) {
	drop := 0
	for drop < len(s.order) {
		id := s.order[drop]
		entry := s.records[id]
		expired := !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt)
		full := s.capacity > 0 && len(s.records) >= s.capacity
		if !expired && !full {
			break
		}
		delete(s.records, id)
		drop++
	}
	s.order = s.order[drop:]
}

func clone(rec models.Record) models.Record {
	rec.HashHistory = slices.Clone(rec.HashHistory)
	return rec
}
