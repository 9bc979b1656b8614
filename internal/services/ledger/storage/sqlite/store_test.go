package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
	"github.com/louisbranch/divination/internal/services/ledger/storage/storagetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTestStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	alice := account.FromIndex(1)

	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.Commit(ctx, []event.Event{storagetest.Submitted(alice, "persisted question")}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	records, err := reopened.Records(ctx, alice)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || string(records[0]) != "persisted question" {
		t.Fatalf("records = %q", records)
	}
	stored, err := reopened.Commit(ctx, []event.Event{storagetest.Submitted(alice, "after reopen")})
	if err != nil {
		t.Fatalf("commit after reopen: %v", err)
	}
	if stored[0].Seq != 2 {
		t.Fatalf("seq = %d, want 2", stored[0].Seq)
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	var store *Store
	if _, err := store.Count(context.Background()); err != storage.ErrNotConfigured {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotConfigured)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}
