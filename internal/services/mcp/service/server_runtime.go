package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/divination/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/divination/internal/platform/grpc"
	"github.com/louisbranch/divination/internal/platform/timeouts"
	ledgerservice "github.com/louisbranch/divination/internal/services/ledger/api/grpc/ledger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

// defaultHTTPAddr binds the HTTP transport to loopback only.
var defaultHTTPAddr = discovery.LoopbackHTTPAddr(discovery.ServiceMCP)

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, cfg.GRPCAddr, cfg.Token, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTPTransport(ctx, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithHTTPTransport serves one shared MCP server over streamable HTTP.
func runWithHTTPTransport(ctx context.Context, cfg Config) error {
	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}

	addr := grpcAddress(cfg.GRPCAddr)
	conn, err := dialLedgerGRPC(ctx, addr)
	if err != nil {
		return err
	}
	mcpServer, err := newServer(conn, cfg.Token)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer mcpServer.Close()

	healthCtx, healthCancel := context.WithCancel(ctx)
	defer healthCancel()
	go mcpServer.monitorHealth(healthCtx)

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer.mcpServer
	}, nil)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("MCP HTTP transport listening at %s", httpAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP transport: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP HTTP transport: %w", err)
	}
}

// monitorHealth periodically checks ledger connection health. Failures are
// logged; individual tool calls surface their own errors.
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn == nil {
				log.Printf("gRPC connection is nil, health check skipped")
				continue
			}
			if err := ledgerProbe().Check(ctx, s.conn); err != nil {
				log.Printf("ledger health check failed: %v", err)
			}
		}
	}
}

// serveWithTransport runs the MCP server on transport and closes the ledger
// connection on the way out.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// runWithTransport creates a server and serves it over the provided transport.
func runWithTransport(ctx context.Context, grpcAddr, token string, transport mcp.Transport) error {
	addr := grpcAddress(grpcAddr)
	conn, err := dialLedgerGRPC(ctx, addr)
	if err != nil {
		return err
	}
	mcpServer, err := newServer(conn, token)
	if err != nil {
		_ = conn.Close()
		return err
	}
	return mcpServer.serveWithTransport(ctx, transport)
}

func dialLedgerGRPC(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	conn, err := platformgrpc.Dial(ctx, addr, timeouts.GRPCDial, ledgerProbe())
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageHealth {
			return nil, fmt.Errorf("ledger at %s is not ready: %w", addr, dialErr.Err)
		}
		return nil, fmt.Errorf("connect to ledger at %s: %w", addr, err)
	}
	return conn, nil
}

func ledgerProbe() platformgrpc.Probe {
	return platformgrpc.Probe{
		Service:     ledgerservice.LedgerService_ServiceName,
		CallTimeout: timeouts.GRPCRequest,
		Logf: func(format string, args ...any) {
			log.Printf("ledger %s", fmt.Sprintf(format, args...))
		},
	}
}

// grpcAddress resolves the ledger address from the explicit value or env when empty.
func grpcAddress(fallback string) string {
	if strings.TrimSpace(fallback) != "" {
		return fallback
	}
	if value := strings.TrimSpace(os.Getenv("DIVINATION_MCP_LEDGER_ADDR")); value != "" {
		return value
	}
	return fallback
}
