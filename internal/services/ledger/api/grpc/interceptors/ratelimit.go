// Package interceptors holds host-level gRPC policies for the ledger.
package interceptors

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	"github.com/louisbranch/divination/internal/platform/ratelimiter"
	"github.com/louisbranch/divination/internal/platform/requestctx"
	"github.com/louisbranch/divination/internal/services/ledger/api/grpc/ledger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

// MethodKindRead and MethodKindWrite classify ledger RPCs.
const (
	MethodKindRead  = "read"
	MethodKindWrite = "write"
)

// ClassifyMethodKind reports whether a full method mutates the ledger.
func ClassifyMethodKind(fullMethod string) string {
	switch fullMethod {
	case ledger.LedgerService_GetCount_FullMethodName,
		ledger.LedgerService_ListRecords_FullMethodName,
		ledger.LedgerService_ListNotifications_FullMethodName:
		return MethodKindRead
	default:
		return MethodKindWrite
	}
}

// RateLimitInterceptor throttles write calls per caller account, falling
// back to the peer address for anonymous callers. A nil limiter allows
// every call. Denials carry the wait in the RetryAfter metadata.
func RateLimitInterceptor(limiter *ratelimiter.Limiter, now func() time.Time) grpc.UnaryServerInterceptor {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if limiter == nil || ClassifyMethodKind(info.FullMethod) != MethodKindWrite {
			return handler(ctx, req)
		}
		decision := limiter.Reserve(rateLimitKey(ctx), now())
		if !decision.Allowed {
			return nil, apperrors.GRPCStatus(
				apperrors.WithMetadata(apperrors.CodeRateLimited, "submission rate exceeded", map[string]string{
					"RetryAfter": retryAfter(decision.RetryAfter).String(),
				}),
				requestctx.LocaleFromContext(ctx),
			)
		}
		return handler(ctx, req)
	}
}

// retryAfter rounds up to whole seconds, at least one.
func retryAfter(wait time.Duration) time.Duration {
	rounded := wait.Truncate(time.Second)
	if rounded < wait || rounded == 0 {
		rounded += time.Second
	}
	return rounded
}

func rateLimitKey(ctx context.Context) string {
	if accountID := requestctx.AccountIDFromContext(ctx); accountID != "" {
		return "account:" + accountID
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "peer:" + p.Addr.String()
	}
	return "anonymous"
}
