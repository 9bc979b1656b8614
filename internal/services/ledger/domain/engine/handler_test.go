package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/command"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/domain/question"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
	boltstore "github.com/louisbranch/divination/internal/services/ledger/storage/bbolt"
	"github.com/louisbranch/divination/internal/services/ledger/storage/memory"
	sqlitestore "github.com/louisbranch/divination/internal/services/ledger/storage/sqlite"
)

type backend struct {
	name string
	open func(t *testing.T) storage.Store
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(t *testing.T) storage.Store { return memory.New() }},
		{name: "sqlite", open: func(t *testing.T) storage.Store {
			store, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
		{name: "bbolt", open: func(t *testing.T) storage.Store {
			store, err := boltstore.Open(filepath.Join(t.TempDir(), "ledger.bolt"))
			if err != nil {
				t.Fatalf("open bbolt: %v", err)
			}
			t.Cleanup(func() { _ = store.Close() })
			return store
		}},
	}
}

// forEachBackend runs fn with a fresh handler, store, and recorder per backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, h Handler, store storage.Store, rec *Recorder)) {
	t.Helper()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			rec := &Recorder{}
			h := NewHandler(store, rec)
			h.Now = func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) }
			fn(t, h, store, rec)
		})
	}
}

func mustCount(t *testing.T, store storage.Store) uint64 {
	t.Helper()
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func mustRecords(t *testing.T, store storage.Store, id account.ID) [][]byte {
	t.Helper()
	records, err := store.Records(context.Background(), id)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	return records
}

func TestSubmitValidQuestion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		alice := account.FromIndex(1)
		if err := h.SubmitQuestion(context.Background(), alice, []byte("This is a valid question")); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if got := mustCount(t, store); got != 1 {
			t.Fatalf("count = %d, want 1", got)
		}
		records := mustRecords(t, store, alice)
		if len(records) != 1 || string(records[0]) != "This is a valid question" {
			t.Fatalf("records = %q", records)
		}
		events := rec.Events()
		if len(events) != 1 {
			t.Fatalf("notifications = %d, want 1", len(events))
		}
		if events[0].Account != alice || string(events[0].Question) != "This is a valid question" {
			t.Fatalf("notification = (%s, %q)", events[0].Account, events[0].Question)
		}
		if events[0].Seq != 1 || events[0].Type != event.TypeQuestionSubmitted {
			t.Fatalf("notification = %+v", events[0])
		}
	})
}

func TestSubmitTooShortQuestion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		alice := account.FromIndex(1)
		err := h.SubmitQuestion(context.Background(), alice, []byte("Hi"))
		if !errors.Is(err, question.ErrQuestionTooShort) {
			t.Fatalf("err = %v, want %v", err, question.ErrQuestionTooShort)
		}
		if apperrors.CodeOf(err) != apperrors.CodeQuestionTooShort {
			t.Fatalf("code = %s", apperrors.CodeOf(err))
		}
		assertGenesis(t, store, rec, alice)
	})
}

func TestSubmitTooLongQuestion(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		alice := account.FromIndex(1)
		err := h.SubmitQuestion(context.Background(), alice, make([]byte, 501))
		if !errors.Is(err, question.ErrQuestionTooLong) {
			t.Fatalf("err = %v, want %v", err, question.ErrQuestionTooLong)
		}
		assertGenesis(t, store, rec, alice)
	})
}

func TestSubmitsAcrossAccountsKeepOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		ctx := context.Background()
		alice := account.FromIndex(1)
		bob := account.FromIndex(2)
		submissions := []struct {
			who      account.ID
			question string
		}{
			{alice, "first from alice"},
			{alice, "second from alice"},
			{bob, "only from bob"},
		}
		for _, s := range submissions {
			if err := h.SubmitQuestion(ctx, s.who, []byte(s.question)); err != nil {
				t.Fatalf("submit %q: %v", s.question, err)
			}
		}

		if got := mustCount(t, store); got != 3 {
			t.Fatalf("count = %d, want 3", got)
		}
		aliceRecords := mustRecords(t, store, alice)
		if len(aliceRecords) != 2 || string(aliceRecords[0]) != "first from alice" || string(aliceRecords[1]) != "second from alice" {
			t.Fatalf("alice records = %q", aliceRecords)
		}
		bobRecords := mustRecords(t, store, bob)
		if len(bobRecords) != 1 || string(bobRecords[0]) != "only from bob" {
			t.Fatalf("bob records = %q", bobRecords)
		}

		events := rec.Events()
		if len(events) != len(submissions) {
			t.Fatalf("notifications = %d, want %d", len(events), len(submissions))
		}
		for i, s := range submissions {
			if events[i].Account != s.who || string(events[i].Question) != s.question {
				t.Fatalf("notification %d = (%s, %q), want (%s, %q)", i, events[i].Account, events[i].Question, s.who, s.question)
			}
			if events[i].Seq != uint64(i+1) {
				t.Fatalf("notification %d seq = %d", i, events[i].Seq)
			}
		}
	})
}

func TestSubmitBoundaries(t *testing.T) {
	tests := []struct {
		length int
		want   error
	}{
		{length: 4, want: question.ErrQuestionTooShort},
		{length: 5},
		{length: 500},
		{length: 501, want: question.ErrQuestionTooLong},
	}
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		alice := account.FromIndex(1)
		accepted := uint64(0)
		for _, tc := range tests {
			before := mustRecords(t, store, alice)
			err := h.SubmitQuestion(context.Background(), alice, bytes.Repeat([]byte{'q'}, tc.length))
			if tc.want == nil {
				if err != nil {
					t.Fatalf("length %d: unexpected error %v", tc.length, err)
				}
				accepted++
			} else {
				if !errors.Is(err, tc.want) {
					t.Fatalf("length %d: err = %v, want %v", tc.length, err, tc.want)
				}
				after := mustRecords(t, store, alice)
				if len(after) != len(before) {
					t.Fatalf("length %d: records changed on rejection", tc.length)
				}
			}
			if got := mustCount(t, store); got != accepted {
				t.Fatalf("length %d: count = %d, want %d", tc.length, got, accepted)
			}
			if rec.Len() != int(accepted) {
				t.Fatalf("length %d: notifications = %d, want %d", tc.length, rec.Len(), accepted)
			}
		}
	})
}

func TestRejectionLeavesPriorStateUntouched(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		ctx := context.Background()
		alice := account.FromIndex(1)
		bob := account.FromIndex(2)
		for _, q := range []string{"kept one", "kept two"} {
			if err := h.SubmitQuestion(ctx, alice, []byte(q)); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		if err := h.SubmitQuestion(ctx, bob, []byte("bob keeps this")); err != nil {
			t.Fatalf("submit: %v", err)
		}

		aliceBefore := mustRecords(t, store, alice)
		bobBefore := mustRecords(t, store, bob)
		for _, bad := range [][]byte{nil, []byte("abcd"), make([]byte, 1024)} {
			if err := h.SubmitQuestion(ctx, alice, bad); err == nil {
				t.Fatalf("expected rejection for %d bytes", len(bad))
			}
		}

		if got := mustCount(t, store); got != 3 {
			t.Fatalf("count = %d, want 3", got)
		}
		assertSameRecords(t, aliceBefore, mustRecords(t, store, alice))
		assertSameRecords(t, bobBefore, mustRecords(t, store, bob))
		if rec.Len() != 3 {
			t.Fatalf("notifications = %d, want 3", rec.Len())
		}
		events, err := store.ListEvents(ctx, 0, 10)
		if err != nil {
			t.Fatalf("list events: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("journal = %d events, want 3", len(events))
		}
	})
}

func TestStoredQuestionIsACopy(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		alice := account.FromIndex(1)
		content := []byte("mutable caller buffer")
		if err := h.SubmitQuestion(context.Background(), alice, content); err != nil {
			t.Fatalf("submit: %v", err)
		}
		copy(content, "XXXXXXX")
		if got := mustRecords(t, store, alice); string(got[0]) != "mutable caller buffer" {
			t.Fatalf("record = %q", got[0])
		}
		if got := rec.Events(); string(got[0].Question) != "mutable caller buffer" {
			t.Fatalf("notification = %q", got[0].Question)
		}
	})
}

func TestSubmitQuestionFromZeroIdentity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, h Handler, store storage.Store, rec *Recorder) {
		zero := account.FromIndex(0)
		ctx := context.Background()
		if err := h.SubmitQuestion(ctx, zero, []byte("Hi")); !errors.Is(err, question.ErrQuestionTooShort) {
			t.Fatalf("err = %v, want %v", err, question.ErrQuestionTooShort)
		}
		if got := mustCount(t, store); got != 0 {
			t.Fatalf("count after rejection = %d, want 0", got)
		}
		if err := h.SubmitQuestion(ctx, zero, []byte("valid question")); err != nil {
			t.Fatalf("submit: %v", err)
		}
		if got := mustCount(t, store); got != 1 {
			t.Fatalf("count = %d, want 1", got)
		}
		if got := mustRecords(t, store, zero); len(got) != 1 || string(got[0]) != "valid question" {
			t.Fatalf("records = %q", got)
		}
		if got := rec.Events(); len(got) != 1 || got[0].Account != zero {
			t.Fatalf("notifications = %+v", got)
		}
	})
}

func TestHandleRequiresRegistryAndStore(t *testing.T) {
	if _, err := (Handler{}).Handle(context.Background(), command.Command{}); !errors.Is(err, ErrCommandRegistryRequired) {
		t.Fatalf("err = %v, want %v", err, ErrCommandRegistryRequired)
	}
	h := NewHandler(nil)
	err := h.SubmitQuestion(context.Background(), account.FromIndex(1), []byte("valid question"))
	if !errors.Is(err, ErrCommitterRequired) {
		t.Fatalf("err = %v, want %v", err, ErrCommitterRequired)
	}
	if err := h.SubmitQuestion(context.Background(), account.FromIndex(1), []byte("no")); !errors.Is(err, question.ErrQuestionTooShort) {
		t.Fatalf("rejection should not need a store: %v", err)
	}
}

type failingCommitter struct{ err error }

func (f failingCommitter) Commit(context.Context, []event.Event) ([]event.Event, error) {
	return nil, f.err
}

func TestCommitFailureEmitsNothing(t *testing.T) {
	boom := errors.New("disk full")
	rec := &Recorder{}
	h := NewHandler(failingCommitter{err: boom}, rec)
	err := h.SubmitQuestion(context.Background(), account.FromIndex(1), []byte("valid question"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if rec.Len() != 0 {
		t.Fatalf("notifications = %d, want 0", rec.Len())
	}
}

func TestSubmitReturnsCommittedEvent(t *testing.T) {
	h := NewHandler(memory.New())
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	h.Now = func() time.Time { return now }
	evt, err := h.Submit(context.Background(), account.FromIndex(3), []byte("with request id"), "req-42")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if evt.Seq != 1 || evt.RequestID != "req-42" || !evt.Timestamp.Equal(now) {
		t.Fatalf("event = %+v", evt)
	}
}

func TestCustomDeciderRejectionWithoutMapping(t *testing.T) {
	h := NewHandler(memory.New())
	h.Decider = DeciderFunc(func(command.Command, func() time.Time) command.Decision {
		return command.Reject(command.Rejection{Code: "CLOSED", Message: "ledger closed"})
	})
	err := h.SubmitQuestion(context.Background(), account.FromIndex(1), []byte("valid question"))
	if !errors.Is(err, ErrUnknownRejection) {
		t.Fatalf("err = %v, want %v", err, ErrUnknownRejection)
	}
}

func TestSinkFuncReceivesNotification(t *testing.T) {
	var got []event.Event
	h := NewHandler(memory.New(), SinkFunc(func(_ context.Context, evt event.Event) {
		got = append(got, evt)
	}), nil)
	if err := h.SubmitQuestion(context.Background(), account.FromIndex(1), []byte("sink me")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(got) != 1 || string(got[0].Question) != "sink me" {
		t.Fatalf("sink events = %+v", got)
	}
}

func assertGenesis(t *testing.T, store storage.Store, rec *Recorder, id account.ID) {
	t.Helper()
	if got := mustCount(t, store); got != 0 {
		t.Fatalf("count = %d, want 0", got)
	}
	if got := mustRecords(t, store, id); len(got) != 0 {
		t.Fatalf("records = %q, want empty", got)
	}
	if rec.Len() != 0 {
		t.Fatalf("notifications = %d, want 0", rec.Len())
	}
	events, err := store.ListEvents(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("journal = %d events, want 0", len(events))
	}
}

func assertSameRecords(t *testing.T, want, got [][]byte) {
	t.Helper()
	if len(want) != len(got) {
		t.Fatalf("records = %q, want %q", got, want)
	}
	for i := range want {
		if !bytes.Equal(want[i], got[i]) {
			t.Fatalf("records[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
