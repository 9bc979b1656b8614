// Package ledger holds the global question counter and per-account records,
// and folds journal events into them.
package ledger

import (
	"fmt"
	"sort"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
)

// State is the ledger: a counter of every accepted submission and each
// account's questions in submission order. An absent account has no records.
type State struct {
	Count   uint64
	Records map[account.ID][][]byte
}

// Genesis returns the empty ledger.
func Genesis() State {
	return State{Records: map[account.ID][][]byte{}}
}

// Fold applies evt to state and returns the next state. The input state is
// not modified and the result shares no question bytes with evt.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case event.TypeQuestionSubmitted:
		next := state.Clone()
		next.Count++
		next.Records[evt.Account] = append(next.Records[evt.Account], append([]byte(nil), evt.Question...))
		return next, nil
	default:
		return state, fmt.Errorf("fold: unsupported event type %q", evt.Type)
	}
}

// Apply folds evt into state in place. Callers own state exclusively.
func (s *State) Apply(evt event.Event) error {
	if evt.Type != event.TypeQuestionSubmitted {
		return fmt.Errorf("apply: unsupported event type %q", evt.Type)
	}
	if s.Records == nil {
		s.Records = map[account.ID][][]byte{}
	}
	s.Count++
	s.Records[evt.Account] = append(s.Records[evt.Account], append([]byte(nil), evt.Question...))
	return nil
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{Count: s.Count, Records: make(map[account.ID][][]byte, len(s.Records))}
	for id, records := range s.Records {
		out.Records[id] = cloneRecords(records)
	}
	return out
}

// RecordsOf returns a copy of id's questions, or an empty slice.
func (s State) RecordsOf(id account.ID) [][]byte {
	return cloneRecords(s.Records[id])
}

// Accounts returns accounts with at least one record, ordered by identity.
func (s State) Accounts() []account.ID {
	ids := make([]account.ID, 0, len(s.Records))
	for id, records := range s.Records {
		if len(records) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}

func cloneRecords(records [][]byte) [][]byte {
	out := make([][]byte, len(records))
	for i, record := range records {
		out[i] = append([]byte(nil), record...)
	}
	return out
}
