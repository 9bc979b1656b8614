package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/divination/internal/services/ledger/storage"
	ledgerbbolt "github.com/louisbranch/divination/internal/services/ledger/storage/bbolt"
	"github.com/louisbranch/divination/internal/services/ledger/storage/memory"
	ledgersqlite "github.com/louisbranch/divination/internal/services/ledger/storage/sqlite"
)

// Store backends selectable by configuration.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreBbolt  = "bbolt"
)

// DefaultDBPath is used when a persistent backend has no explicit path.
var DefaultDBPath = filepath.Join("data", "ledger.db")

// OpenStore opens the ledger store for kind at path.
func OpenStore(ctx context.Context, kind, path string) (storage.Store, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = StoreSQLite
	}
	if kind == StoreMemory {
		return memory.New(), nil
	}

	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	switch kind {
	case StoreSQLite:
		store, err := ledgersqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open ledger sqlite store: %w", err)
		}
		return store, nil
	case StoreBbolt:
		store, err := ledgerbbolt.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open ledger bbolt store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger store %q", kind)
	}
}
