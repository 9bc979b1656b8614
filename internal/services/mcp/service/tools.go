package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	ledgerservice "github.com/louisbranch/divination/internal/services/ledger/api/grpc/ledger"
	"github.com/louisbranch/divination/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
}

func registerQuestionTools(registrar mcpRegistrationTarget, ledger domain.Ledger) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.SubmitQuestionTool(), handler: domain.SubmitQuestionHandler(ledger, ledgerservice.UserMessage)},
		{tool: domain.QuestionCountTool(), handler: domain.QuestionCountHandler(ledger)},
		{tool: domain.ListQuestionsTool(), handler: domain.ListQuestionsHandler(ledger)},
	}
	for _, registration := range registrations {
		if err := registrar.AddTool(registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

// grpcLedger adapts the ledger gRPC client to domain.Ledger, binding the
// caller and locale per call.
type grpcLedger struct {
	conn  grpc.ClientConnInterface
	token string
	bound string
}

// newGRPCLedger binds conn to token. The token subject is read without
// verification: the ledger verifies it, the bridge only needs to know which
// account its submissions land on.
func newGRPCLedger(conn grpc.ClientConnInterface, token string) (grpcLedger, error) {
	token = strings.TrimSpace(token)
	ledger := grpcLedger{conn: conn, token: token}
	if token == "" {
		return ledger, nil
	}
	subject, err := tokenSubject(token)
	if err != nil {
		return grpcLedger{}, err
	}
	ledger.bound = subject
	return ledger, nil
}

func tokenSubject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("parse ledger token: %w", err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.New("ledger token has no subject")
	}
	return subject, nil
}

// BoundAccount returns the token subject, if a token is configured.
func (l grpcLedger) BoundAccount() string {
	return l.bound
}

func (l grpcLedger) client(caller, locale string) *ledgerservice.Client {
	client := ledgerservice.NewClient(l.conn)
	client.Account = caller
	client.Token = l.token
	client.Locale = locale
	return client
}

func (l grpcLedger) SubmitQuestion(ctx context.Context, caller, locale string, content []byte) error {
	return l.client(caller, locale).SubmitQuestion(ctx, content)
}

func (l grpcLedger) Count(ctx context.Context, locale string) (uint64, error) {
	return l.client("", locale).Count(ctx)
}

func (l grpcLedger) Records(ctx context.Context, accountID, locale string) ([][]byte, error) {
	return l.client("", locale).Records(ctx, accountID)
}
