// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/divination/internal/platform/cmd"
	"github.com/louisbranch/divination/internal/platform/discovery"
	mcpservice "github.com/louisbranch/divination/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	Addr      string `env:"DIVINATION_MCP_LEDGER_ADDR"`
	HTTPAddr  string `env:"DIVINATION_MCP_HTTP_ADDR"    envDefault:"localhost:8085"`
	Transport string `env:"DIVINATION_MCP_TRANSPORT"    envDefault:"stdio" validate:"oneof=stdio http"`
	Token     string `env:"DIVINATION_MCP_LEDGER_TOKEN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.Addr, "addr", "", "ledger server address (default: DIVINATION_MCP_LEDGER_ADDR or ledger:8090)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", "localhost:8085", "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", "stdio", "Transport type: stdio or http")
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args); err != nil {
		return Config{}, err
	}
	cfg.Addr = discovery.OrDefaultGRPCAddr(cfg.Addr, discovery.ServiceLedger)
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			GRPCAddr:  cfg.Addr,
			HTTPAddr:  cfg.HTTPAddr,
			Transport: mcpservice.TransportKind(cfg.Transport),
			Token:     cfg.Token,
		})
	})
}
