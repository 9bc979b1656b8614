// Package replay rebuilds ledger state from the notification journal and
// checks it against a store's materialized counter and records.
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/domain/ledger"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrMismatch indicates materialized state that disagrees with the journal.
	ErrMismatch = errors.New("ledger state does not match journal")
)

// EventStore lists events for replay.
type EventStore interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// StateStore exposes materialized ledger state for verification.
type StateStore interface {
	EventStore
	Count(ctx context.Context) (uint64, error)
	Records(ctx context.Context, id account.ID) ([][]byte, error)
	Accounts(ctx context.Context) ([]account.ID, error)
}

// Options configures replay behavior.
type Options struct {
	UntilSeq uint64
	PageSize int
}

// Result captures replay outcomes.
type Result struct {
	State   ledger.State
	LastSeq uint64
	Applied int
}

// Replay folds the journal from genesis in sequence order.
func Replay(ctx context.Context, store EventStore, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: ledger.Genesis()}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		events, err := store.ListEvents(ctx, result.LastSeq, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return result, nil
			}
			expectedSeq := result.LastSeq + 1
			if evt.Seq != expectedSeq {
				return result, fmt.Errorf("event sequence gap: expected %d got %d", expectedSeq, evt.Seq)
			}
			if err := result.State.Apply(evt); err != nil {
				return result, fmt.Errorf("apply event %d: %w", evt.Seq, err)
			}
			result.LastSeq = evt.Seq
			result.Applied++
		}
	}
}

// Verify replays store's journal and compares the result with the stored
// counter and every account's records.
func Verify(ctx context.Context, store StateStore) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	result, err := Replay(ctx, store, Options{})
	if err != nil {
		return result, err
	}

	count, err := store.Count(ctx)
	if err != nil {
		return result, err
	}
	if count != result.State.Count {
		return result, fmt.Errorf("%w: stored count %d, journal count %d", ErrMismatch, count, result.State.Count)
	}

	storedAccounts, err := store.Accounts(ctx)
	if err != nil {
		return result, err
	}
	replayedAccounts := result.State.Accounts()
	if len(storedAccounts) != len(replayedAccounts) {
		return result, fmt.Errorf("%w: stored %d accounts, journal %d", ErrMismatch, len(storedAccounts), len(replayedAccounts))
	}
	for i, id := range replayedAccounts {
		if storedAccounts[i] != id {
			return result, fmt.Errorf("%w: account %d is %s, journal has %s", ErrMismatch, i, storedAccounts[i], id)
		}
		records, err := store.Records(ctx, id)
		if err != nil {
			return result, err
		}
		want := result.State.Records[id]
		if len(records) != len(want) {
			return result, fmt.Errorf("%w: account %s has %d records, journal %d", ErrMismatch, id, len(records), len(want))
		}
		for j := range want {
			if !bytes.Equal(records[j], want[j]) {
				return result, fmt.Errorf("%w: account %s record %d differs", ErrMismatch, id, j)
			}
		}
	}
	return result, nil
}
