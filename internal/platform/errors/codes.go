// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Question errors
	CodeQuestionTooShort Code = "QUESTION_TOO_SHORT"
	CodeQuestionTooLong  Code = "QUESTION_TOO_LONG"

	// Caller errors
	CodeAccountRequired Code = "ACCOUNT_REQUIRED"
	CodeAccountInvalid  Code = "ACCOUNT_INVALID"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeRateLimited     Code = "RATE_LIMITED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeQuestionTooShort,
		CodeQuestionTooLong,
		CodeAccountRequired,
		CodeAccountInvalid:
		return codes.InvalidArgument

	case CodeUnauthenticated:
		return codes.Unauthenticated

	case CodeRateLimited:
		return codes.ResourceExhausted

	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
