// Package ledger parses ledger service flags and launches the service.
package ledger

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/divination/internal/platform/cmd"
	server "github.com/louisbranch/divination/internal/services/ledger/app"
)

// Config holds ledger command configuration.
type Config struct {
	Port           int     `env:"DIVINATION_LEDGER_PORT"      envDefault:"8090" validate:"gte=0,lte=65535"`
	Addr           string  `env:"DIVINATION_LEDGER_ADDR"`
	Store          string  `env:"DIVINATION_LEDGER_STORE"     envDefault:"sqlite" validate:"oneof=memory sqlite bbolt"`
	DBPath         string  `env:"DIVINATION_LEDGER_DB_PATH"   envDefault:"data/ledger.db"`
	MetricsAddr    string  `env:"DIVINATION_METRICS_ADDR"`
	AuthPublicKey  string  `env:"DIVINATION_AUTH_PUBLIC_KEY"`
	AuthIssuer     string  `env:"DIVINATION_AUTH_ISSUER"      validate:"required_with=AuthPublicKey"`
	RateLimitRPS   float64 `env:"DIVINATION_RATE_LIMIT_RPS"   envDefault:"5" validate:"gte=0"`
	RateLimitBurst int     `env:"DIVINATION_RATE_LIMIT_BURST" envDefault:"10" validate:"gte=0"`
	LogLevel       string  `env:"DIVINATION_LOG_LEVEL"        envDefault:"info" validate:"oneof=trace debug info warn warning error"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.IntVar(&cfg.Port, "port", 8090, "The ledger gRPC server port")
	fs.StringVar(&cfg.Addr, "addr", "", "The ledger gRPC listen address (overrides -port)")
	fs.StringVar(&cfg.Store, "store", "sqlite", "Storage backend: memory, sqlite, or bbolt")
	fs.StringVar(&cfg.DBPath, "db", "data/ledger.db", "Database path for sqlite or bbolt")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Prometheus metrics listen address (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ListenAddr returns the gRPC listen address.
func (c Config) ListenAddr() string {
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		return addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Run starts the ledger gRPC service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:           cfg.ListenAddr(),
			Store:          cfg.Store,
			DBPath:         cfg.DBPath,
			MetricsAddr:    cfg.MetricsAddr,
			AuthPublicKey:  cfg.AuthPublicKey,
			AuthIssuer:     cfg.AuthIssuer,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			LogLevel:       cfg.LogLevel,
		})
	})
}
