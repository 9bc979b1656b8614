package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"github.com/louisbranch/divination/internal/services/ledger/domain/command"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/domain/question"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/divination/internal/services/ledger/domain/engine"

var (
	// ErrCommandRegistryRequired indicates a missing command registry.
	ErrCommandRegistryRequired = errors.New("command registry is required")
	// ErrCommitterRequired indicates a missing committer.
	ErrCommitterRequired = errors.New("committer is required")
	// ErrUnknownRejection indicates a rejection without a matching error.
	ErrUnknownRejection = errors.New("command rejected")
)

// Committer atomically persists the events of an accepted decision together
// with the counter and record updates they imply.
type Committer interface {
	Commit(ctx context.Context, events []event.Event) ([]event.Event, error)
}

// Decider returns a decision for a command.
type Decider interface {
	Decide(cmd command.Command, now func() time.Time) command.Decision
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(cmd command.Command, now func() time.Time) command.Decision

// Decide implements Decider.
func (fn DeciderFunc) Decide(cmd command.Command, now func() time.Time) command.Decision {
	return fn(cmd, now)
}

// Handler validates, decides, and commits commands.
type Handler struct {
	Commands *command.Registry
	Events   *event.Registry
	Decider  Decider
	Store    Committer
	Sinks    []Sink
	Now      func() time.Time
	Tracer   trace.Tracer
}

// NewHandler returns a handler with the default registries and question
// decider, committing to store.
func NewHandler(store Committer, sinks ...Sink) Handler {
	return Handler{
		Commands: command.DefaultRegistry(),
		Events:   event.DefaultRegistry(),
		Decider:  DeciderFunc(question.Decide),
		Store:    store,
		Sinks:    sinks,
	}
}

// Handle validates a command, decides it, and commits accepted events.
// A rejected decision is returned with a nil error and nothing is written.
func (h Handler) Handle(ctx context.Context, cmd command.Command) (command.Decision, error) {
	if h.Commands == nil {
		return command.Decision{}, ErrCommandRegistryRequired
	}
	validated, err := h.Commands.ValidateForDecision(cmd)
	if err != nil {
		return command.Decision{}, err
	}
	cmd = validated

	decider := h.Decider
	if decider == nil {
		decider = DeciderFunc(question.Decide)
	}
	now := h.Now
	if now == nil {
		now = time.Now
	}
	decision := decider.Decide(cmd, now)
	if decision.Rejected() || len(decision.Events) == 0 {
		return decision, nil
	}

	if h.Events != nil {
		vetted := make([]event.Event, 0, len(decision.Events))
		for _, evt := range decision.Events {
			checked, err := h.Events.ValidateForAppend(evt)
			if err != nil {
				return command.Decision{}, err
			}
			vetted = append(vetted, checked)
		}
		decision.Events = vetted
	}

	if h.Store == nil {
		return command.Decision{}, ErrCommitterRequired
	}
	stored, err := h.Store.Commit(ctx, decision.Events)
	if err != nil {
		return command.Decision{}, fmt.Errorf("commit: %w", err)
	}
	decision.Events = stored

	for _, sink := range h.Sinks {
		if sink == nil {
			continue
		}
		for _, evt := range stored {
			sink.Notify(ctx, evt.Clone())
		}
	}
	return decision, nil
}

// SubmitQuestion records content for caller. It returns
// question.ErrQuestionTooShort or question.ErrQuestionTooLong for content
// outside the length bounds; in that case nothing is written or emitted.
func (h Handler) SubmitQuestion(ctx context.Context, caller account.ID, content []byte) error {
	_, err := h.Submit(ctx, caller, content, "")
	return err
}

// Submit is SubmitQuestion with a request id, returning the committed
// notification.
func (h Handler) Submit(ctx context.Context, caller account.ID, content []byte, requestID string) (event.Event, error) {
	tracer := h.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "ledger.SubmitQuestion", trace.WithAttributes(
		attribute.String("ledger.account", caller.String()),
		attribute.Int("ledger.question.bytes", len(content)),
	))
	defer span.End()

	decision, err := h.Handle(ctx, command.Command{
		Type:      command.TypeSubmitQuestion,
		Account:   caller,
		Content:   content,
		RequestID: requestID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return event.Event{}, err
	}
	if decision.Rejected() {
		rejection := decision.Rejections[0]
		span.SetAttributes(attribute.String("ledger.rejection", rejection.Code))
		if mapped, ok := question.ErrorForRejection(rejection); ok {
			return event.Event{}, mapped
		}
		return event.Event{}, fmt.Errorf("%w: %s", ErrUnknownRejection, rejection.Code)
	}
	if len(decision.Events) == 0 {
		return event.Event{}, nil
	}
	span.SetAttributes(attribute.Int64("ledger.event.seq", int64(decision.Events[0].Seq)))
	return decision.Events[0], nil
}
