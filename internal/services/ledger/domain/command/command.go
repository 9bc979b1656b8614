// Package command defines the command envelope and validation entry points.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
)

var (
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrTypeUnknown indicates an unregistered command type.
	ErrTypeUnknown = errors.New("command type is not registered")
)

// Type identifies the command type string.
type Type string

// TypeSubmitQuestion asks the ledger to record a question for the caller.
const TypeSubmitQuestion Type = "question.submit"

// Command captures the canonical command envelope.
//
// Account is the authenticated caller; the ledger trusts it as given.
type Command struct {
	Type      Type
	Account   account.ID
	Content   []byte
	RequestID string
}

// Definition registers metadata for a command type.
type Definition struct {
	Type Type
}

// Registry stores command definitions and validates commands.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new command type definition to the registry.
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
		return fmt.Errorf("command type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForDecision validates and normalizes a command before decision handling.
// Content is left untouched: only its length matters to the ledger.
func (r *Registry) ValidateForDecision(cmd Command) (Command, error) {
	if r == nil {
		return Command{}, errors.New("registry is required")
	}
	cmd.Type = Type(strings.TrimSpace(string(cmd.Type)))
	if cmd.Type == "" {
		return Command{}, ErrTypeRequired
	}
	if _, ok := r.definitions[cmd.Type]; !ok {
		return Command{}, fmt.Errorf("%w: %s", ErrTypeUnknown, cmd.Type)
	}
	cmd.RequestID = strings.TrimSpace(cmd.RequestID)
	return cmd, nil
}

// Definition returns the command definition for a given type.
func (r *Registry) Definition(cmdType Type) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.definitions[Type(strings.TrimSpace(string(cmdType)))]
	return def, ok
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

// DefaultRegistry returns a registry with the ledger's command types registered.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	_ = registry.Register(Definition{Type: TypeSubmitQuestion})
	return registry
}

// NewEvent builds an event by copying the envelope fields from cmd. The
// question bytes are copied so the event never aliases caller memory.
func NewEvent(cmd Command, eventType event.Type, question []byte, now time.Time) event.Event {
	return event.Event{
		Type:      eventType,
		Account:   cmd.Account,
		Question:  append([]byte(nil), question...),
		RequestID: cmd.RequestID,
		Timestamp: now.UTC(),
	}
}
