package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeQuestionTooShort = "QUESTION_TOO_SHORT"
	CodeQuestionTooLong  = "QUESTION_TOO_LONG"
	CodeAccountRequired  = "ACCOUNT_REQUIRED"
	CodeAccountInvalid   = "ACCOUNT_INVALID"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnknown          = "UNKNOWN"
)

// KnownCodes lists every code a locale catalog is expected to translate.
func KnownCodes() []Code {
	return []Code{
		CodeQuestionTooShort,
		CodeQuestionTooLong,
		CodeAccountRequired,
		CodeAccountInvalid,
		CodeUnauthenticated,
		CodeRateLimited,
		CodeNotFound,
		CodeUnknown,
	}
}
