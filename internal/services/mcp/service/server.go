package service

import (
	"context"
	"fmt"

	"github.com/louisbranch/divination/internal/platform/branding"
	"github.com/louisbranch/divination/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// serverVersion identifies the MCP server version.
const serverVersion = "0.1.0"

// serverName identifies this MCP server to clients.
var serverName = branding.AppName + " MCP"

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	GRPCAddr  string
	Transport TransportKind
	// HTTPAddr is the listen address for the HTTP transport.
	HTTPAddr string
	// Token is forwarded to the ledger as a bearer token when set.
	Token string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// New creates an MCP server bound to the ledger at grpcAddr without waiting
// for it to become healthy.
func New(grpcAddr, token string) (*Server, error) {
	addr := grpcAddress(grpcAddr)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to ledger at %s: %w", addr, err)
	}
	srv, err := newServer(conn, token)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return srv, nil
}

// newServer registers the ledger tools once over conn.
func newServer(conn *grpc.ClientConn, token string) (*Server, error) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	ledger, err := newGRPCLedger(conn, token)
	if err != nil {
		return nil, err
	}
	if err := registerQuestionTools(mcpServerRegistrationAdapter{server: mcpServer}, ledger); err != nil {
		return nil, fmt.Errorf("register MCP question tools: %w", err)
	}
	return &Server{mcpServer: mcpServer, conn: conn}, nil
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.SubmitQuestionInput, domain.SubmitQuestionResult](),
	newMCPToolRegistrar[domain.QuestionCountInput, domain.QuestionCountResult](),
	newMCPToolRegistrar[domain.ListQuestionsInput, domain.ListQuestionsResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the gRPC connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	s.conn = nil
	return nil
}
