// Package server wires the ledger runtime: storage, the transition engine,
// the gRPC API, and the metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/louisbranch/divination/internal/platform/logging"
	"github.com/louisbranch/divination/internal/platform/metrics"
	"github.com/louisbranch/divination/internal/platform/ratelimiter"
	"github.com/louisbranch/divination/internal/platform/timeouts"
	"github.com/louisbranch/divination/internal/services/ledger/api/grpc/auth"
	"github.com/louisbranch/divination/internal/services/ledger/api/grpc/interceptors"
	ledgerservice "github.com/louisbranch/divination/internal/services/ledger/api/grpc/ledger"
	grpcmeta "github.com/louisbranch/divination/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/divination/internal/services/ledger/domain/engine"
	"github.com/louisbranch/divination/internal/services/ledger/domain/event"
	"github.com/louisbranch/divination/internal/services/ledger/storage"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config holds ledger host settings.
type Config struct {
	// Addr is the gRPC listen address.
	Addr string
	// Store selects the backend: memory, sqlite, or bbolt.
	Store  string
	DBPath string
	// MetricsAddr enables the Prometheus endpoint when set.
	MetricsAddr string
	// AuthPublicKey enables bearer verification when set (base64 ed25519).
	AuthPublicKey  string
	AuthIssuer     string
	RateLimitRPS   float64
	RateLimitBurst int
	LogLevel       string
	// Logger overrides the logger built from LogLevel.
	Logger *logging.Logger
}

// Server hosts the ledger gRPC API and storage lifecycle.
type Server struct {
	listener        net.Listener
	grpcServer      *grpc.Server
	health          *health.Server
	metricsListener net.Listener
	metricsServer   *http.Server
	store           storage.Store
	logger          *logging.Logger
	closeOnce       sync.Once
}

// New creates a configured ledger server.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New("ledger", logging.Options{Level: cfg.LogLevel})
	}
	verifier, err := auth.ParseVerifierConfig(cfg.AuthPublicKey, cfg.AuthIssuer, nil)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	store, err := OpenStore(ctx, cfg.Store, cfg.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	m := metrics.New("ledger")
	if count, err := store.Count(ctx); err == nil {
		m.SetLedgerCount(count)
	}

	handler := engine.NewHandler(store, notificationLogger(logger))
	authn := auth.Authenticator{Verifier: verifier}
	limiter := ratelimiter.New(ratelimiter.Policy{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst})

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcmeta.UnaryServerInterceptor(nil),
			authn.UnaryServerInterceptor(),
			interceptors.RateLimitInterceptor(limiter, nil),
			logging.UnaryServerInterceptor(logger),
			metrics.UnaryServerInterceptor(m),
		),
		grpc.ChainStreamInterceptor(
			grpcmeta.StreamServerInterceptor(nil),
			authn.StreamServerInterceptor(),
			logging.StreamServerInterceptor(logger),
			metrics.StreamServerInterceptor(m),
		),
	)
	healthServer := health.NewServer()
	ledgerservice.RegisterLedgerServiceServer(grpcServer, ledgerservice.NewService(handler, store, m))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ledgerservice.LedgerService_ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	server := &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		logger:     logger,
	}

	if cfg.MetricsAddr != "" {
		metricsListener, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			server.Close()
			return nil, fmt.Errorf("listen for metrics on %s: %w", cfg.MetricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		server.metricsListener = metricsListener
		server.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader}
	}
	return server, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// MetricsAddr returns the metrics listener address, or empty when disabled.
func (s *Server) MetricsAddr() string {
	if s == nil || s.metricsListener == nil {
		return ""
	}
	return s.metricsListener.Addr().String()
}

// Run creates and serves a ledger server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the gRPC and metrics servers until ctx ends or one fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	s.logger.WithField("addr", s.Addr()).Info("ledger server listening")
	group.Go(func() error {
		if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	if s.metricsServer != nil {
		s.logger.WithField("addr", s.MetricsAddr()).Info("metrics endpoint listening")
		group.Go(func() error {
			if err := s.metricsServer.Serve(s.metricsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve metrics: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		if s.metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer cancel()
			if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown metrics: %w", err)
			}
		}
		return nil
	})
	return group.Wait()
}

// Close releases ledger server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.metricsServer != nil {
			_ = s.metricsServer.Close()
		}
		if s.metricsListener != nil {
			_ = s.metricsListener.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				s.logger.WithError(err).Error("close ledger store")
			}
		}
	})
}

func notificationLogger(logger *logging.Logger) engine.Sink {
	return engine.SinkFunc(func(ctx context.Context, evt event.Event) {
		logger.FromContext(ctx).WithFields(map[string]any{
			"seq":     evt.Seq,
			"event":   string(evt.Type),
			"account": evt.Account.String(),
		}).Info("question submitted")
	})
}
