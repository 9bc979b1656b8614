// Package memory provides an in-process ledger store.
package memory

import (
	"context"
	"sync"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/domain/ledger"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
)

// Store keeps ledger state and the journal in memory.
type Store struct {
	mu     sync.RWMutex
	state  ledger.State
	events []event.Event
	closed bool
}

// New returns an empty store at genesis.
func New() *Store {
	return &Store{state: ledger.Genesis()}
}

// Count returns the number of accepted submissions.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrNotConfigured
	}
	return s.state.Count, nil
}

// Records returns id's questions in submission order.
func (s *Store) Records(ctx context.Context, id account.ID) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrNotConfigured
	}
	return s.state.RecordsOf(id), nil
}

// Accounts lists accounts with records.
func (s *Store) Accounts(ctx context.Context) ([]account.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrNotConfigured
	}
	return s.state.Accounts(), nil
}

// Commit applies events to a copy of the state and swaps it in only when
// every event applied.
func (s *Store) Commit(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := storage.CheckCommittable(events); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrNotConfigured
	}

	next := s.state.Clone()
	nextSeq := uint64(len(s.events))
	stored := make([]event.Event, 0, len(events))
	for _, evt := range events {
		if err := next.Apply(evt); err != nil {
			return nil, err
		}
		nextSeq++
		committed := evt.Clone()
		committed.Seq = nextSeq
		stored = append(stored, committed)
	}

	s.state = next
	s.events = append(s.events, stored...)
	out := make([]event.Event, len(stored))
	for i, evt := range stored {
		out[i] = evt.Clone()
	}
	return out, nil
}

// ListEvents returns up to limit events after afterSeq.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrNotConfigured
	}
	if afterSeq >= uint64(len(s.events)) || limit <= 0 {
		return []event.Event{}, nil
	}
	remaining := s.events[afterSeq:]
	if len(remaining) > limit {
		remaining = remaining[:limit]
	}
	out := make([]event.Event, len(remaining))
	for i, evt := range remaining {
		out[i] = evt.Clone()
	}
	return out, nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ storage.Store = (*Store)(nil)
