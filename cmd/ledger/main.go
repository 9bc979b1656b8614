package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	ledgercmd "github.com/louisbranch/divination/internal/cmd/ledger"
	entrypoint "github.com/louisbranch/divination/internal/platform/cmd"
)

// main starts the question ledger gRPC service.
func main() {
	log.SetPrefix("[LEDGER] ")
	if err := entrypoint.LoadEnvFile(); err != nil {
		log.Fatalf("load env file: %v", err)
	}
	cfg, err := ledgercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledgercmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve ledger: %v", err)
	}
}
