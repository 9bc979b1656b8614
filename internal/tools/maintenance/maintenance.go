package maintenance

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/louisbranch/divination/internal/platform/cmd"
	"github.com/louisbranch/divination/internal/platform/grpc/pagination"
	server "github.com/louisbranch/divination/internal/services/ledger/app"
	"github.com/louisbranch/divination/internal/services/ledger/domain/replay"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
	"gopkg.in/yaml.v3"
)

const exportPageSize = 200

// Config holds maintenance command configuration.
type Config struct {
	Store    string        `env:"DIVINATION_LEDGER_STORE"       envDefault:"sqlite" validate:"oneof=sqlite bbolt"`
	DBPath   string        `env:"DIVINATION_LEDGER_DB_PATH"     envDefault:"data/ledger.db" validate:"required"`
	Timeout  time.Duration `env:"DIVINATION_MAINTENANCE_TIMEOUT" envDefault:"10m"`
	Verify   bool
	Export   bool
	UntilSeq uint64
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	fs.StringVar(&cfg.Store, "store", "sqlite", "storage backend: sqlite or bbolt")
	fs.StringVar(&cfg.DBPath, "db", "data/ledger.db", "path to the ledger database")
	fs.DurationVar(&cfg.Timeout, "timeout", 10*time.Minute, "overall timeout")
	fs.BoolVar(&cfg.Verify, "verify", false, "replay the journal and compare it with the stored counter and records")
	fs.BoolVar(&cfg.Export, "export", false, "write the ledger contents as YAML")
	fs.Uint64Var(&cfg.UntilSeq, "until-seq", 0, "export notifications up to this sequence (0 = latest)")
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if !cfg.Verify && !cfg.Export {
		return errors.New("one of -verify or -export is required")
	}

	store, err := server.OpenStore(ctx, cfg.Store, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close store: %v\n", closeErr)
		}
	}()

	if cfg.Verify {
		result, err := replay.Verify(ctx, store)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		fmt.Fprintf(errOut, "verified %d notifications, count %d, %d accounts\n",
			result.Applied, result.State.Count, len(result.State.Accounts()))
	}
	if cfg.Export {
		snapshot, err := buildExport(ctx, store, cfg.UntilSeq)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(snapshot); err != nil {
			return fmt.Errorf("encode export: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode export: %w", err)
		}
	}
	return nil
}

// Export is the YAML document written by -export. Question bytes are base64.
type Export struct {
	Count         uint64               `yaml:"count"`
	Accounts      []AccountExport      `yaml:"accounts"`
	Notifications []NotificationExport `yaml:"notifications"`
}

// AccountExport lists one account's records in submission order.
type AccountExport struct {
	Account string   `yaml:"account"`
	Records []string `yaml:"records"`
}

// NotificationExport is one journal entry.
type NotificationExport struct {
	Seq       uint64 `yaml:"seq"`
	Type      string `yaml:"type"`
	Account   string `yaml:"account"`
	Question  string `yaml:"question"`
	RequestID string `yaml:"request_id,omitempty"`
	Timestamp string `yaml:"timestamp"`
}

func buildExport(ctx context.Context, store storage.Store, untilSeq uint64) (Export, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return Export{}, fmt.Errorf("read count: %w", err)
	}
	snapshot := Export{Count: count, Accounts: []AccountExport{}, Notifications: []NotificationExport{}}

	accounts, err := store.Accounts(ctx)
	if err != nil {
		return Export{}, fmt.Errorf("list accounts: %w", err)
	}
	for _, id := range accounts {
		records, err := store.Records(ctx, id)
		if err != nil {
			return Export{}, fmt.Errorf("read records for %s: %w", id, err)
		}
		entry := AccountExport{Account: id.String(), Records: make([]string, 0, len(records))}
		for _, record := range records {
			entry.Records = append(entry.Records, base64.StdEncoding.EncodeToString(record))
		}
		snapshot.Accounts = append(snapshot.Accounts, entry)
	}

	var afterSeq uint64
	for {
		events, err := store.ListEvents(ctx, afterSeq, exportPageSize)
		if err != nil {
			return Export{}, fmt.Errorf("list notifications: %w", err)
		}
		for _, evt := range events {
			if untilSeq > 0 && evt.Seq > untilSeq {
				return snapshot, nil
			}
			snapshot.Notifications = append(snapshot.Notifications, NotificationExport{
				Seq:       evt.Seq,
				Type:      string(evt.Type),
				Account:   evt.Account.String(),
				Question:  base64.StdEncoding.EncodeToString(evt.Question),
				RequestID: evt.RequestID,
				Timestamp: evt.Timestamp.UTC().Format(time.RFC3339Nano),
			})
			afterSeq = evt.Seq
		}
		if pagination.IsLastPage(len(events), exportPageSize) {
			return snapshot, nil
		}
	}
}
