// Package event defines the notification envelope appended to the ledger
// journal for every accepted submission.
package event

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
)

var (
	// ErrTypeRequired indicates a missing event type.
	ErrTypeRequired = errors.New("event type is required")
	// ErrTypeUnknown indicates an unregistered event type.
	ErrTypeUnknown = errors.New("event type is not registered")
	// ErrQuestionRequired indicates a missing question payload.
	ErrQuestionRequired = errors.New("event question is required")
)

// Type identifies the event type string.
type Type string

// TypeQuestionSubmitted records one accepted question for an account.
const TypeQuestionSubmitted Type = "question.submitted"

// Event is the journal record emitted once per accepted submission.
//
// Seq is assigned by the store on commit and starts at 1.
type Event struct {
	Seq       uint64
	Type      Type
	Account   account.ID
	Question  []byte
	RequestID string
	Timestamp time.Time
}

// Clone returns a copy of evt that shares no memory with it.
func (e Event) Clone() Event {
	e.Question = append([]byte(nil), e.Question...)
	return e
}

// Definition registers metadata for an event type.
type Definition struct {
	Type Type
	// AllowEmptyQuestion permits events without a question payload.
	AllowEmptyQuestion bool
}

// Registry stores event definitions and validates events before append.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new event type definition to the registry.
func (r *Registry) Register(def Definition) error {
	if r == nil {
		return errors.New("registry is required")
	}
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if def.Type == "" {
		return ErrTypeRequired
	}
	if r.definitions == nil {
		r.definitions = make(map[Type]Definition)
	}
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("event type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForAppend validates and normalizes an event before it is committed.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	if r == nil {
		return Event{}, errors.New("registry is required")
	}
	evt.Type = Type(strings.TrimSpace(string(evt.Type)))
	if evt.Type == "" {
		return Event{}, ErrTypeRequired
	}
	def, ok := r.definitions[evt.Type]
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrTypeUnknown, evt.Type)
	}
	if len(evt.Question) == 0 && !def.AllowEmptyQuestion {
		return Event{}, ErrQuestionRequired
	}
	if !evt.Timestamp.IsZero() {
		evt.Timestamp = evt.Timestamp.UTC()
	}
	return evt, nil
}

// ListDefinitions returns a stable, sorted snapshot of registered definitions.
func (r *Registry) ListDefinitions() []Definition {
	if r == nil || len(r.definitions) == 0 {
		return nil
	}
	definitions := make([]Definition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		definitions = append(definitions, definition)
	}
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].Type < definitions[j].Type
	})
	return definitions
}

// DefaultRegistry returns a registry with the ledger's event types registered.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.Register(Definition{Type: TypeQuestionSubmitted})
	return registry
}
