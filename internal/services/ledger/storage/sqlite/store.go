// Package sqlite provides a SQLite-backed ledger store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/divination/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
	"github.com/louisbranch/divination/internal/services/ledger/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes commits.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Count returns the number of accepted submissions.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, storage.ErrNotConfigured
	}
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT question_count FROM ledger_counter WHERE id = 1`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("get question count: %w", err)
	}
	return uint64(count), nil
}

// Records returns id's questions in submission order.
func (s *Store) Records(ctx context.Context, id account.ID) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, storage.ErrNotConfigured
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT question FROM account_records
		  WHERE account_id = ?
		  ORDER BY record_index ASC`,
		id[:],
	)
	if err != nil {
		return nil, fmt.Errorf("list account records: %w", err)
	}
	defer rows.Close()

	records := [][]byte{}
	for rows.Next() {
		var question []byte
		if err := rows.Scan(&question); err != nil {
			return nil, fmt.Errorf("list account records: %w", err)
		}
		records = append(records, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list account records: %w", err)
	}
	return records, nil
}

// Accounts lists accounts with records.
func (s *Store) Accounts(ctx context.Context) ([]account.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, storage.ErrNotConfigured
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT DISTINCT account_id FROM account_records ORDER BY account_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	ids := []account.ID{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		id, err := account.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return ids, nil
}

// Commit bumps the counter, appends records, and journals events in one
// transaction.
func (s *Store) Commit(ctx context.Context, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, storage.ErrNotConfigured
	}
	if err := storage.CheckCommittable(events); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return []event.Event{}, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM ledger_events`).Scan(&lastSeq); err != nil {
		return nil, fmt.Errorf("read last seq: %w", err)
	}

	stored := make([]event.Event, 0, len(events))
	for _, evt := range events {
		committed := evt.Clone()
		lastSeq++
		committed.Seq = uint64(lastSeq)

		if _, err := tx.ExecContext(ctx, `UPDATE ledger_counter SET question_count = question_count + 1 WHERE id = 1`); err != nil {
			return nil, fmt.Errorf("increment question count: %w", err)
		}
		var nextIndex int64
		if err := tx.QueryRowContext(
			ctx,
			`SELECT COALESCE(MAX(record_index) + 1, 0) FROM account_records WHERE account_id = ?`,
			committed.Account[:],
		).Scan(&nextIndex); err != nil {
			return nil, fmt.Errorf("read record index: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO account_records (account_id, record_index, question) VALUES (?, ?, ?)`,
			committed.Account[:],
			nextIndex,
			nonNilBytes(committed.Question),
		); err != nil {
			return nil, fmt.Errorf("append account record: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO ledger_events (seq, event_type, account_id, question, request_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			lastSeq,
			string(committed.Type),
			committed.Account[:],
			nonNilBytes(committed.Question),
			committed.RequestID,
			toMillis(committed.Timestamp),
		); err != nil {
			return nil, fmt.Errorf("append event: %w", err)
		}
		stored = append(stored, committed)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// ListEvents returns up to limit events after afterSeq.
func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, storage.ErrNotConfigured
	}
	if limit <= 0 {
		return []event.Event{}, nil
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, event_type, account_id, question, request_id, created_at
		   FROM ledger_events
		  WHERE seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		var (
			seq       int64
			eventType string
			rawID     []byte
			question  []byte
			requestID string
			createdAt int64
		)
		if err := rows.Scan(&seq, &eventType, &rawID, &question, &requestID, &createdAt); err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		id, err := account.FromBytes(rawID)
		if err != nil {
			return nil, fmt.Errorf("list events: seq %d: %w", seq, err)
		}
		events = append(events, event.Event{
			Seq:       uint64(seq),
			Type:      event.Type(eventType),
			Account:   id,
			Question:  question,
			RequestID: requestID,
			Timestamp: fromMillis(createdAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func nonNilBytes(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}

var _ storage.Store = (*Store)(nil)
