// Package bbolt provides a BoltDB-backed ledger store using a flat
// prefixed key layout (see package keys).
package bbolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/divination/internal/platform/timeouts"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
	"github.com/louisbranch/divination/internal/services/ledger/storage/keys"
	"go.etcd.io/bbolt"
)

const ledgerBucket = "ledger"

// Store provides a BoltDB-backed ledger store.
type Store struct {
	db *bbolt.DB
}

// eventRecord is the JSON value stored under an event key.
type eventRecord struct {
	Type      string    `json:"type"`
	Account   []byte    `json:"account"`
	Question  []byte    `json:"question"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: timeouts.StoreOpen})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Count returns the number of accepted submissions.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.db == nil {
		return 0, storage.ErrNotConfigured
	}
	var count uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := ledgerBucketOf(tx)
		if err != nil {
			return err
		}
		count, err = keys.ParseUint64(bucket.Get(keys.GlobalCountKey))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get question count: %w", err)
	}
	return count, nil
}

// Records returns id's questions in submission order.
func (s *Store) Records(ctx context.Context, id account.ID) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, storage.ErrNotConfigured
	}
	records := [][]byte{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := ledgerBucketOf(tx)
		if err != nil {
			return err
		}
		prefix := keys.AccountRecords(id)
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			records = append(records, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list account records: %w", err)
	}
	return records, nil
}

// Accounts lists accounts with records, ordered by identity.
func (s *Store) Accounts(ctx context.Context) ([]account.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, storage.ErrNotConfigured
	}
	ids := []account.ID{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := ledgerBucketOf(tx)
		if err != nil {
			return err
		}
		cursor := bucket.Cursor()
		prefix := keys.AccountRecordCountPrefix
		for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
			id, err := keys.AccountFromRecordCount(k)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	// Keys are ordered by digest, not identity.
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids, nil
}

// Commit applies events inside one update transaction.
func (s *Store) Commit(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, storage.ErrNotConfigured
	}
	if err := storage.CheckCommittable(events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []event.Event{}, nil
	}

	stored := make([]event.Event, 0, len(events))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := ledgerBucketOf(tx)
		if err != nil {
			return err
		}
		count, err := keys.ParseUint64(bucket.Get(keys.GlobalCountKey))
		if err != nil {
			return fmt.Errorf("read question count: %w", err)
		}
		lastSeq, err := keys.ParseUint64(bucket.Get(keys.LastEventSeqKey))
		if err != nil {
			return fmt.Errorf("read last seq: %w", err)
		}

		for _, evt := range events {
			committed := evt.Clone()
			lastSeq++
			committed.Seq = lastSeq
			count++

			countKey := keys.AccountRecordCount(committed.Account)
			index, err := keys.ParseUint64(bucket.Get(countKey))
			if err != nil {
				return fmt.Errorf("read record count: %w", err)
			}
			if err := bucket.Put(keys.AccountRecord(committed.Account, index), nonNilBytes(committed.Question)); err != nil {
				return fmt.Errorf("append account record: %w", err)
			}
			if err := bucket.Put(countKey, keys.Uint64(index+1)); err != nil {
				return fmt.Errorf("update record count: %w", err)
			}

			payload, err := json.Marshal(eventRecord{
				Type:      string(committed.Type),
				Account:   committed.Account.Bytes(),
				Question:  committed.Question,
				RequestID: committed.RequestID,
				Timestamp: committed.Timestamp,
			})
			if err != nil {
				return fmt.Errorf("marshal event: %w", err)
			}
			if err := bucket.Put(keys.Event(committed.Seq), payload); err != nil {
				return fmt.Errorf("append event: %w", err)
			}
			stored = append(stored, committed)
		}

		if err := bucket.Put(keys.GlobalCountKey, keys.Uint64(count)); err != nil {
			return fmt.Errorf("update question count: %w", err)
		}
		return bucket.Put(keys.LastEventSeqKey, keys.Uint64(lastSeq))
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListEvents returns up to limit events after afterSeq.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, storage.ErrNotConfigured
	}
	events := []event.Event{}
	if limit <= 0 {
		return events, nil
	}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := ledgerBucketOf(tx)
		if err != nil {
			return err
		}
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(keys.Event(afterSeq + 1)); k != nil && bytes.HasPrefix(k, keys.EventPrefix); k, v = cursor.Next() {
			if len(events) >= limit {
				break
			}
			seq, err := keys.SeqFromEvent(k)
			if err != nil {
				return err
			}
			var record eventRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshal event %d: %w", seq, err)
			}
			id, err := account.FromBytes(record.Account)
			if err != nil {
				return fmt.Errorf("event %d: %w", seq, err)
			}
			events = append(events, event.Event{
				Seq:       seq,
				Type:      event.Type(record.Type),
				Account:   id,
				Question:  record.Question,
				RequestID: record.RequestID,
				Timestamp: record.Timestamp,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ledgerBucket))
		if err != nil {
			return fmt.Errorf("create ledger bucket: %w", err)
		}
		return nil
	})
}

func ledgerBucketOf(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket([]byte(ledgerBucket))
	if bucket == nil {
		return nil, fmt.Errorf("ledger bucket is missing")
	}
	return bucket, nil
}

func nonNilBytes(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}

var _ storage.Store = (*Store)(nil)
