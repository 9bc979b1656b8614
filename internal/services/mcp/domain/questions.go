package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	i18ncatalog "github.com/louisbranch/divination/internal/platform/i18n/catalog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	// ErrAccountRequired is returned when a tool needs an account and none was given.
	ErrAccountRequired = errors.New("account is required")
	// ErrAccountMismatch is returned when a submission names an account other
	// than the one the ledger credentials act as.
	ErrAccountMismatch = errors.New("account does not match the ledger token subject")
)

// Ledger is the subset of the ledger API the MCP tools call.
type Ledger interface {
	SubmitQuestion(ctx context.Context, caller, locale string, content []byte) error
	Count(ctx context.Context, locale string) (uint64, error)
	Records(ctx context.Context, accountID, locale string) ([][]byte, error)
	// BoundAccount is the account the ledger credentials submit as, or empty
	// when each call names its own account.
	BoundAccount() string
}

// ErrorMessage extracts a caller-facing message from a ledger error.
type ErrorMessage func(error) string

// SubmitQuestionInput represents the MCP tool input for submitting a question.
type SubmitQuestionInput struct {
	Account  string `json:"account,omitempty" jsonschema:"base58 account submitting the question; when the server holds a ledger token it defaults to, and must equal, the token subject"`
	Question string `json:"question" jsonschema:"question text, 5 to 500 bytes"`
	Locale   string `json:"locale,omitempty" jsonschema:"optional locale for messages, e.g. en-US or pt-BR"`
}

// SubmitQuestionResult represents the MCP tool output for a submission.
type SubmitQuestionResult struct {
	Recorded bool   `json:"recorded" jsonschema:"whether the question was recorded"`
	Count    uint64 `json:"count" jsonschema:"global question count after the call"`
	Message  string `json:"message" jsonschema:"localized summary"`
}

// QuestionCountInput represents the MCP tool input for reading the count.
type QuestionCountInput struct {
	Locale string `json:"locale,omitempty" jsonschema:"optional locale for messages"`
}

// QuestionCountResult represents the MCP tool output for the count.
type QuestionCountResult struct {
	Count   uint64 `json:"count" jsonschema:"number of accepted questions"`
	Message string `json:"message" jsonschema:"localized summary"`
}

// ListQuestionsInput represents the MCP tool input for listing an account's questions.
type ListQuestionsInput struct {
	Account string `json:"account" jsonschema:"base58 account whose questions to list"`
	Locale  string `json:"locale,omitempty" jsonschema:"optional locale for messages"`
}

// ListQuestionsResult represents the MCP tool output for an account's questions.
type ListQuestionsResult struct {
	Account   string   `json:"account" jsonschema:"account the questions belong to"`
	Questions []string `json:"questions" jsonschema:"questions in submission order"`
	Message   string   `json:"message,omitempty" jsonschema:"localized summary when the list is empty"`
}

// SubmitQuestionTool defines the MCP tool schema for submitting a question.
func SubmitQuestionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "submit_question",
		Description: "Records a question for an account. When the server holds a ledger token the account is the token subject. Questions must be between 5 and 500 bytes.",
	}
}

// QuestionCountTool defines the MCP tool schema for the global count.
func QuestionCountTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "question_count",
		Description: "Returns how many questions have been recorded across all accounts",
	}
}

// ListQuestionsTool defines the MCP tool schema for listing questions.
func ListQuestionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_questions",
		Description: "Lists the questions an account has recorded, oldest first",
	}
}

// SubmitQuestionHandler executes a question submission. Validation failures
// come back as a non-recorded result carrying the localized reason, so the
// calling agent can rephrase instead of treating it as a tool fault.
func SubmitQuestionHandler(ledger Ledger, describe ErrorMessage) mcp.ToolHandlerFor[SubmitQuestionInput, SubmitQuestionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SubmitQuestionInput) (*mcp.CallToolResult, SubmitQuestionResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		caller, err := submitter(input.Account, ledger.BoundAccount())
		if err != nil {
			return nil, SubmitQuestionResult{}, err
		}
		printer := i18ncatalog.Default().Printer(input.Locale)

		if err := ledger.SubmitQuestion(runCtx, caller, input.Locale, []byte(input.Question)); err != nil {
			message := err.Error()
			if describe != nil {
				message = describe(err)
			}
			count, countErr := ledger.Count(runCtx, input.Locale)
			if countErr != nil {
				return nil, SubmitQuestionResult{}, fmt.Errorf("question submit failed: %w", err)
			}
			result := SubmitQuestionResult{Recorded: false, Count: count, Message: message}
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: message}},
			}, result, nil
		}

		count, err := ledger.Count(runCtx, input.Locale)
		if err != nil {
			return nil, SubmitQuestionResult{}, fmt.Errorf("question count failed: %w", err)
		}
		return nil, SubmitQuestionResult{
			Recorded: true,
			Count:    count,
			Message:  printer.Sprintf("core.question.recorded"),
		}, nil
	}
}

// submitter picks the submitting account from the tool input and the ledger
// binding.
func submitter(requested, bound string) (string, error) {
	requested = strings.TrimSpace(requested)
	switch {
	case bound == "" && requested == "":
		return "", ErrAccountRequired
	case bound == "":
		return requested, nil
	case requested == "" || requested == bound:
		return bound, nil
	default:
		return "", fmt.Errorf("%w: got %s, token is for %s", ErrAccountMismatch, requested, bound)
	}
}

// QuestionCountHandler returns the global question count.
func QuestionCountHandler(ledger Ledger) mcp.ToolHandlerFor[QuestionCountInput, QuestionCountResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QuestionCountInput) (*mcp.CallToolResult, QuestionCountResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		count, err := ledger.Count(runCtx, input.Locale)
		if err != nil {
			return nil, QuestionCountResult{}, fmt.Errorf("question count failed: %w", err)
		}
		printer := i18ncatalog.Default().Printer(input.Locale)
		return nil, QuestionCountResult{
			Count:   count,
			Message: printer.Sprintf("core.question.count", count),
		}, nil
	}
}

// ListQuestionsHandler lists an account's questions in submission order.
func ListQuestionsHandler(ledger Ledger) mcp.ToolHandlerFor[ListQuestionsInput, ListQuestionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListQuestionsInput) (*mcp.CallToolResult, ListQuestionsResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, grpcLongCallTimeout)
		defer cancel()

		accountID := strings.TrimSpace(input.Account)
		if accountID == "" {
			return nil, ListQuestionsResult{}, ErrAccountRequired
		}
		records, err := ledger.Records(runCtx, accountID, input.Locale)
		if err != nil {
			return nil, ListQuestionsResult{}, fmt.Errorf("list questions failed: %w", err)
		}

		result := ListQuestionsResult{Account: accountID, Questions: make([]string, 0, len(records))}
		for _, record := range records {
			result.Questions = append(result.Questions, displayQuestion(record))
		}
		if len(result.Questions) == 0 {
			result.Message = i18ncatalog.Default().Printer(input.Locale).Sprintf("core.question.none")
		}
		return nil, result, nil
	}
}

// displayQuestion renders stored bytes as text, quoting content that is not
// valid UTF-8.
func displayQuestion(record []byte) string {
	if utf8.Valid(record) {
		return string(record)
	}
	return fmt.Sprintf("%q", record)
}
