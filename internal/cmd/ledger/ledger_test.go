package ledger

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8090 || cfg.ListenAddr() != ":8090" {
		t.Fatalf("port = %d, addr = %q", cfg.Port, cfg.ListenAddr())
	}
	if cfg.Store != "sqlite" || cfg.DBPath != "data/ledger.db" {
		t.Fatalf("store = %q, db = %q", cfg.Store, cfg.DBPath)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("rate limit = %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	t.Setenv("DIVINATION_LEDGER_STORE", "bbolt")
	t.Setenv("DIVINATION_LEDGER_DB_PATH", "/tmp/env.db")
	t.Setenv("DIVINATION_METRICS_ADDR", "127.0.0.1:9090")

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:7000", "-db", "/tmp/flag.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.ListenAddr() != "127.0.0.1:7000" {
		t.Fatalf("addr = %q", cfg.ListenAddr())
	}
	if cfg.Store != "bbolt" {
		t.Fatalf("store = %q, want env value", cfg.Store)
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Fatalf("db = %q, want flag value", cfg.DBPath)
	}
	if cfg.MetricsAddr != "127.0.0.1:9090" {
		t.Fatalf("metrics addr = %q", cfg.MetricsAddr)
	}
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "store", args: []string{"-store", "redis"}},
		{name: "port", args: []string{"-port", "70000"}},
		{name: "issuer", env: map[string]string{"DIVINATION_AUTH_PUBLIC_KEY": "AAAA"}},
		{name: "log level", args: []string{"-log-level", "loud"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
			if _, err := ParseConfig(fs, tc.args); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
