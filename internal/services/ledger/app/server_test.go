package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/louisbranch/divination/internal/platform/logging"
	ledgerservice "github.com/louisbranch/divination/internal/services/ledger/api/grpc/ledger"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func startServer(t *testing.T, cfg Config) (*Server, *grpc.ClientConn) {
	t.Helper()
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("ledger-test", logging.Options{Output: io.Discard})
	}
	srv, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial ledger server: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})
	return srv, conn
}

func TestServerRoundTripAcrossStores(t *testing.T) {
	for _, kind := range []string{StoreMemory, StoreSQLite, StoreBbolt} {
		t.Run(kind, func(t *testing.T) {
			_, conn := startServer(t, Config{Store: kind, DBPath: filepath.Join(t.TempDir(), "ledger.db")})
			ctx := context.Background()
			client := ledgerservice.NewClient(conn)
			client.Account = account.FromIndex(1).String()

			if err := client.SubmitQuestion(ctx, []byte("Will it rain tomorrow?")); err != nil {
				t.Fatalf("submit: %v", err)
			}
			if err := client.SubmitQuestion(ctx, []byte("Hi?")); status.Code(err) != codes.InvalidArgument {
				t.Fatalf("short submit code = %v, want InvalidArgument", status.Code(err))
			}
			count, err := client.Count(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if count != 1 {
				t.Fatalf("count = %d, want 1", count)
			}
			events, err := client.Notifications(ctx, 0, 0)
			if err != nil {
				t.Fatalf("notifications: %v", err)
			}
			if len(events) != 1 || string(events[0].Question) != "Will it rain tomorrow?" {
				t.Fatalf("events = %+v", events)
			}
		})
	}
}

func TestServerReportsHealth(t *testing.T) {
	_, conn := startServer(t, Config{Store: StoreMemory})
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{
		Service: ledgerservice.LedgerService_ServiceName,
	})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s, want SERVING", resp.GetStatus())
	}
}

func TestServerExposesMetrics(t *testing.T) {
	srv, conn := startServer(t, Config{Store: StoreMemory, MetricsAddr: "127.0.0.1:0"})
	client := ledgerservice.NewClient(conn)
	client.Account = account.FromIndex(1).String()
	if err := client.SubmitQuestion(context.Background(), []byte("Is the metrics endpoint up?")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Get("http://" + srv.MetricsAddr() + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), `divination_submissions_total{outcome="accepted"} 1`) {
		t.Fatalf("metrics body missing accepted submission:\n%s", body)
	}
}

func TestServerRateLimitsSubmissions(t *testing.T) {
	_, conn := startServer(t, Config{Store: StoreMemory, RateLimitRPS: 0.001, RateLimitBurst: 1})
	client := ledgerservice.NewClient(conn)
	client.Account = account.FromIndex(1).String()
	ctx := context.Background()

	if err := client.SubmitQuestion(ctx, []byte("First question")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := client.SubmitQuestion(ctx, []byte("Second question"))
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %v, want ResourceExhausted", status.Code(err))
	}
	if _, err := client.Count(ctx); err != nil {
		t.Fatalf("reads must not be limited: %v", err)
	}
}

func TestServerVerifiesBearerTokens(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	_, conn := startServer(t, Config{
		Store:         StoreMemory,
		AuthPublicKey: base64.StdEncoding.EncodeToString(public),
		AuthIssuer:    "divination-test",
	})
	caller := account.FromIndex(5)
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Issuer:    "divination-test",
		Subject:   caller.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(private)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	ctx := context.Background()
	headerOnly := ledgerservice.NewClient(conn)
	headerOnly.Account = caller.String()
	if err := headerOnly.SubmitQuestion(ctx, []byte("Trust me, I am an account")); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("header-only code = %v, want Unauthenticated", status.Code(err))
	}

	bearer := ledgerservice.NewClient(conn)
	bearer.Token = token
	if err := bearer.SubmitQuestion(ctx, []byte("Signed question here")); err != nil {
		t.Fatalf("bearer submit: %v", err)
	}
	records, err := bearer.Records(ctx, "")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(records) != 1 || !bytes.Equal(records[0], []byte("Signed question here")) {
		t.Fatalf("records = %q", records)
	}
}

func TestServerLogsNotifications(t *testing.T) {
	out := &syncWriter{}
	_, conn := startServer(t, Config{
		Store:  StoreMemory,
		Logger: logging.New("ledger-test", logging.Options{Output: out}),
	})
	client := ledgerservice.NewClient(conn)
	client.Account = account.FromIndex(1).String()
	if err := client.SubmitQuestion(context.Background(), []byte("Log this question")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out.String(), `"message":"question submitted"`) {
		t.Fatalf("log output missing notification:\n%s", out.String())
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{Addr: "127.0.0.1:0", Store: "redis"}); err == nil {
		t.Fatal("expected unknown store error")
	}
	if _, err := New(context.Background(), Config{Addr: "127.0.0.1:0", Store: StoreMemory, AuthPublicKey: "AAAA"}); err == nil {
		t.Fatal("expected auth config error")
	}
}

func TestServerCloseReleasesListener(t *testing.T) {
	srv, err := New(context.Background(), Config{
		Addr:   "127.0.0.1:0",
		Store:  StoreMemory,
		Logger: logging.New("ledger-test", logging.Options{Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	addr := srv.Addr()
	srv.Close()
	srv.Close()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		t.Fatalf("listen after close: %v", err)
	}
	_ = l.Close()
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
