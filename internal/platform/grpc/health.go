package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultProbeInterval    = 200 * time.Millisecond
	defaultProbeMaxInterval = time.Second
	defaultProbeCallTimeout = time.Second
)

// ErrNotServing indicates a health check that answered with a status other
// than SERVING.
var ErrNotServing = errors.New("service is not serving")

// Probe checks a peer through the grpc.health.v1 protocol.
type Probe struct {
	// Service is the registered health name; empty probes the whole server.
	Service string
	// Interval is the first retry delay in Wait. It doubles up to MaxInterval.
	Interval    time.Duration
	MaxInterval time.Duration
	// CallTimeout bounds each individual Check RPC.
	CallTimeout time.Duration
	Logf        func(string, ...any)
}

// Check performs one health RPC and returns nil only for SERVING.
func (p Probe) Check(ctx context.Context, conn *gogrpc.ClientConn) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, orDuration(p.CallTimeout, defaultProbeCallTimeout))
	defer cancel()

	response, err := grpc_health_v1.NewHealthClient(conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: p.Service})
	if err != nil {
		return fmt.Errorf("health check %q: %w", p.Service, err)
	}
	if status := response.GetStatus(); status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %q reports %s", ErrNotServing, p.Service, status.String())
	}
	return nil
}

// Wait blocks until Check succeeds or ctx ends.
func (p Probe) Wait(ctx context.Context, conn *gogrpc.ClientConn) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	backoff := orDuration(p.Interval, defaultProbeInterval)
	maxBackoff := orDuration(p.MaxInterval, defaultProbeMaxInterval)
	for {
		err := p.Check(ctx, conn)
		if err == nil {
			p.logf("gRPC health check is SERVING")
			return nil
		}
		p.logf("waiting for gRPC health: %v", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (p Probe) logf(format string, args ...any) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

func orDuration(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
