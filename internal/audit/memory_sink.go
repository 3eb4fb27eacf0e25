package audit

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memorySink struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemorySink() Sink {
	return &memorySink{}
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) Register(ctx context.Context, entry *Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	entry.Index = int64(len(s.entries) + 1)
	s.entries = append(s.entries, clone(*entry))
	return entry.Index, nil
}

func (s *memorySink) Update(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.position(entry.Index)
	if !ok {
		return ErrNotFound
	}
	entry.UpdatedAt = time.Now().UTC()
	updated := clone(*entry)
	updated.CreatedAt = s.entries[i].CreatedAt
	updated.OrderID = s.entries[i].OrderID
	updated.OfferID = s.entries[i].OfferID
	updated.Notes = s.entries[i].Notes
	s.entries[i] = updated
	return nil
}

func (s *memorySink) Note(ctx context.Context, index int64, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.position(index)
	if !ok {
		return ErrNotFound
	}
	s.entries[i].Notes = append(s.entries[i].Notes, note)
	s.entries[i].UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memorySink) Get(ctx context.Context, index int64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.position(index)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return clone(s.entries[i]), nil
}

// List - последние записи, новые первыми
func (s *memorySink) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for i := len(s.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, clone(s.entries[i]))
	}
	return entries, nil
}

func (s *memorySink) position(index int64) (int, bool) {
	i := int(index) - 1
	if i < 0 || i >= len(s.entries) {
		return 0, false
	}
	return i, true
}

func clone(e Entry) Entry {
	e.ProviderRefs = slices.Clone(e.ProviderRefs)
	e.Notes = slices.Clone(e.Notes)
	return e
}
