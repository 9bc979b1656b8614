package command

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
)

func TestValidateForDecision(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{name: "missing type", cmd: Command{Account: account.FromIndex(1)}, want: ErrTypeRequired},
		{name: "unknown type", cmd: Command{Type: "question.erase", Account: account.FromIndex(1)}, want: ErrTypeUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := registry.ValidateForDecision(tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	got, err := registry.ValidateForDecision(Command{
		Type:      " question.submit ",
		Account:   account.FromIndex(1),
		Content:   []byte("  spaces are content  "),
		RequestID: " req-1 ",
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Type != TypeSubmitQuestion || got.RequestID != "req-1" {
		t.Fatalf("normalized = %+v", got)
	}
	if string(got.Content) != "  spaces are content  " {
		t.Fatalf("content = %q, want untouched", got.Content)
	}
}

func TestValidateForDecisionAcceptsZeroIdentity(t *testing.T) {
	cmd := Command{Type: TypeSubmitQuestion, Account: account.FromIndex(0), Content: []byte("Hi")}
	got, err := DefaultRegistry().ValidateForDecision(cmd)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.Account != account.FromIndex(0) {
		t.Fatalf("account = %s, want %s", got.Account, account.FromIndex(0))
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{Type: TypeSubmitQuestion}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(Definition{Type: TypeSubmitQuestion}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, ok := registry.Definition(TypeSubmitQuestion); !ok {
		t.Fatal("expected definition lookup to succeed")
	}
}

func TestNewEventCopiesQuestion(t *testing.T) {
	content := []byte("What awaits me?")
	cmd := Command{Type: TypeSubmitQuestion, Account: account.FromIndex(2), Content: content, RequestID: "r"}
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	evt := NewEvent(cmd, event.TypeQuestionSubmitted, content, now)
	content[0] = 'w'

	if string(evt.Question) != "What awaits me?" {
		t.Fatalf("question = %q", evt.Question)
	}
	if evt.Account != cmd.Account || evt.RequestID != "r" || !evt.Timestamp.Equal(now) {
		t.Fatalf("event = %+v", evt)
	}
}

func TestDecisionHelpers(t *testing.T) {
	if Accept().Rejected() {
		t.Fatal("accept should not be rejected")
	}
	if !Reject(Rejection{Code: "X"}).Rejected() {
		t.Fatal("reject should be rejected")
	}
}
