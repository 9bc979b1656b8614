// Package storagetest holds the behavior every ledger store must share.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
)

// OpenFunc opens a fresh, empty store for one subtest. Implementations
// register their own cleanup.
type OpenFunc func(t *testing.T) storage.Store

// Submitted builds a question.submitted event for tests.
func Submitted(id account.ID, question string) event.Event {
	return event.Event{
		Type:      event.TypeQuestionSubmitted,
		Account:   id,
		Question:  []byte(question),
		RequestID: "req-" + question,
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Run exercises open against the shared store contract.
func Run(t *testing.T, open OpenFunc) {
	t.Helper()
	t.Run("empty at genesis", func(t *testing.T) { testGenesis(t, open(t)) })
	t.Run("commit updates counter records and journal", func(t *testing.T) { testCommit(t, open(t)) })
	t.Run("commit is atomic", func(t *testing.T) { testCommitAtomic(t, open(t)) })
	t.Run("stored bytes are copies", func(t *testing.T) { testCopies(t, open(t)) })
	t.Run("list events pages by sequence", func(t *testing.T) { testListEvents(t, open(t)) })
	t.Run("accounts are ordered", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("zero identity is an account", func(t *testing.T) { testZeroAccount(t, open(t)) })
	t.Run("canceled context", func(t *testing.T) { testCanceled(t, open(t)) })
}

func testGenesis(t *testing.T, store storage.Store) {
	ctx := context.Background()
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
	records, err := store.Records(ctx, account.FromIndex(1))
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %q, want empty", records)
	}
	events, err := store.ListEvents(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func testCommit(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := account.FromIndex(1)
	bob := account.FromIndex(2)

	stored, err := store.Commit(ctx, []event.Event{Submitted(alice, "first question")})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(stored) != 1 || stored[0].Seq != 1 {
		t.Fatalf("stored = %+v, want seq 1", stored)
	}
	stored, err = store.Commit(ctx, []event.Event{Submitted(bob, "bob asks"), Submitted(alice, "second question")})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(stored) != 2 || stored[0].Seq != 2 || stored[1].Seq != 3 {
		t.Fatalf("stored = %+v, want seq 2 and 3", stored)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	assertRecords(t, store, alice, "first question", "second question")
	assertRecords(t, store, bob, "bob asks")

	events, err := store.ListEvents(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	want := []struct {
		who      account.ID
		question string
	}{{alice, "first question"}, {bob, "bob asks"}, {alice, "second question"}}
	for i, evt := range events {
		if evt.Seq != uint64(i+1) || evt.Type != event.TypeQuestionSubmitted {
			t.Fatalf("event %d = %+v", i, evt)
		}
		if evt.Account != want[i].who || string(evt.Question) != want[i].question {
			t.Fatalf("event %d = (%s, %q), want (%s, %q)", i, evt.Account, evt.Question, want[i].who, want[i].question)
		}
		if evt.RequestID != "req-"+want[i].question {
			t.Fatalf("event %d request id = %q", i, evt.RequestID)
		}
		if !evt.Timestamp.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("event %d timestamp = %v", i, evt.Timestamp)
		}
	}
}

func testCommitAtomic(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := account.FromIndex(1)
	if _, err := store.Commit(ctx, []event.Event{Submitted(alice, "kept question")}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	bad := []event.Event{Submitted(alice, "never stored"), {Type: "question.erased", Account: alice}}
	if _, err := store.Commit(ctx, bad); !errors.Is(err, storage.ErrUnsupportedEvent) {
		t.Fatalf("err = %v, want %v", err, storage.ErrUnsupportedEvent)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	assertRecords(t, store, alice, "kept question")
	events, err := store.ListEvents(ctx, 0, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func testZeroAccount(t *testing.T, store storage.Store) {
	ctx := context.Background()
	zero := account.FromIndex(0)
	if _, err := store.Commit(ctx, []event.Event{Submitted(zero, "from account zero")}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	assertRecords(t, store, zero, "from account zero")
	ids, err := store.Accounts(ctx)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(ids) != 1 || ids[0] != zero {
		t.Fatalf("accounts = %v, want [%s]", ids, zero)
	}
}

func testCopies(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := account.FromIndex(1)
	evt := Submitted(alice, "mutable input")
	stored, err := store.Commit(ctx, []event.Event{evt})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	evt.Question[0] = 'X'
	stored[0].Question[1] = 'X'

	records, err := store.Records(ctx, alice)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	records[0][2] = 'X'
	assertRecords(t, store, alice, "mutable input")
}

func testListEvents(t *testing.T, store storage.Store) {
	ctx := context.Background()
	alice := account.FromIndex(1)
	for _, q := range []string{"one!!", "two!!", "three", "four!", "five!"} {
		if _, err := store.Commit(ctx, []event.Event{Submitted(alice, q)}); err != nil {
			t.Fatalf("commit %s: %v", q, err)
		}
	}
	page, err := store.ListEvents(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 2 || page[1].Seq != 3 {
		t.Fatalf("page = %+v, want seq 2 and 3", page)
	}
	tail, err := store.ListEvents(ctx, 4, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 5 {
		t.Fatalf("tail = %+v, want seq 5", tail)
	}
	past, err := store.ListEvents(ctx, 5, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("past = %d events, want 0", len(past))
	}
}

func testAccounts(t *testing.T, store storage.Store) {
	ctx := context.Background()
	ids := []account.ID{account.FromIndex(30), account.FromIndex(10), account.FromIndex(20)}
	for _, id := range ids {
		if _, err := store.Commit(ctx, []event.Event{Submitted(id, "hello there")}); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	got, err := store.Accounts(ctx)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	want := []account.ID{account.FromIndex(10), account.FromIndex(20), account.FromIndex(30)}
	if len(got) != len(want) {
		t.Fatalf("accounts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("accounts[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func testCanceled(t *testing.T, store storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Commit(ctx, []event.Event{Submitted(account.FromIndex(1), "too late")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want %v", err, context.Canceled)
	}
	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func assertRecords(t *testing.T, store storage.Store, id account.ID, want ...string) {
	t.Helper()
	got, err := store.Records(context.Background(), id)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("records = %q, want %q", got, want)
	}
	for i := range want {
		if !bytes.Equal(got[i], []byte(want[i])) {
			t.Fatalf("records[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
