// Package question validates submitted questions and decides whether a
// submission is recorded.
package question

import (
	"strconv"
	"time"

	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	"github.com/louisbranch/divination/internal/services/ledger/domain/command"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
)

// Length bounds in bytes, both inclusive.
const (
	MinLength = 5
	MaxLength = 500
)

var (
	// ErrQuestionTooShort rejects content shorter than MinLength bytes.
	ErrQuestionTooShort = apperrors.WithMetadata(
		apperrors.CodeQuestionTooShort,
		"question is too short",
		map[string]string{"Min": strconv.Itoa(MinLength)},
	)
	// ErrQuestionTooLong rejects content longer than MaxLength bytes.
	ErrQuestionTooLong = apperrors.WithMetadata(
		apperrors.CodeQuestionTooLong,
		"question is too long",
		map[string]string{"Max": strconv.Itoa(MaxLength)},
	)
)

// Validate checks only the byte length of content.
func Validate(content []byte) error {
	switch n := len(content); {
	case n < MinLength:
		return ErrQuestionTooShort
	case n > MaxLength:
		return ErrQuestionTooLong
	default:
		return nil
	}
}

// Decide returns the decision for a submit command. It reads no state: every
// valid submission is accepted.
func Decide(cmd command.Command, now func() time.Time) command.Decision {
	if err := Validate(cmd.Content); err != nil {
		domainErr := err.(*apperrors.Error)
		return command.Reject(command.Rejection{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
		})
	}
	if now == nil {
		now = time.Now
	}
	return command.Accept(command.NewEvent(cmd, event.TypeQuestionSubmitted, cmd.Content, now()))
}

// ErrorForRejection maps a rejection code back to its sentinel error.
func ErrorForRejection(rejection command.Rejection) (error, bool) {
	switch apperrors.Code(rejection.Code) {
	case apperrors.CodeQuestionTooShort:
		return ErrQuestionTooShort, true
	case apperrors.CodeQuestionTooLong:
		return ErrQuestionTooLong, true
	default:
		return nil, false
	}
}
