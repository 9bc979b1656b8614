// Package storage defines persistence contracts for the question ledger.
//
// A store holds three things: the global question counter, each account's
// ordered question records, and the sequenced notification journal. Commit
// updates all three in one atomic unit; a failed commit leaves no trace.
//
// Implementations live in subpackages (memory, sqlite, bbolt).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
)

var (
	// ErrNotConfigured indicates a nil or closed store.
	ErrNotConfigured = errors.New("storage is not configured")
	// ErrUnsupportedEvent indicates an event the store cannot commit.
	ErrUnsupportedEvent = errors.New("unsupported event")
)

// Store persists ledger state and the notification journal.
type Store interface {
	// Count returns the number of accepted submissions.
	Count(ctx context.Context) (uint64, error)
	// Records returns id's questions in submission order. Unknown accounts
	// yield an empty slice.
	Records(ctx context.Context, id account.ID) ([][]byte, error)
	// Accounts lists accounts with at least one record, ordered by identity.
	Accounts(ctx context.Context) ([]account.ID, error)
	// Commit atomically applies events: the counter, the account records,
	// and the journal. It returns the events with sequence numbers assigned.
	Commit(ctx context.Context, events []event.Event) ([]event.Event, error)
	// ListEvents returns up to limit journal events with Seq > afterSeq.
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
	Close() error
}

// CheckCommittable validates events before a store opens a write transaction.
func CheckCommittable(events []event.Event) error {
	for i, evt := range events {
		if evt.Type != event.TypeQuestionSubmitted {
			return fmt.Errorf("%w at %d: %q", ErrUnsupportedEvent, i, evt.Type)
		}
	}
	return nil
}
