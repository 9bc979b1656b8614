// Package metadata defines the headers that carry request context across
// gRPC boundaries and the interceptors that lift them into context.
package metadata

import (
	"context"
	"strconv"
	"strings"

	"github.com/louisbranch/divination/internal/platform/id"
	"github.com/louisbranch/divination/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	// RequestIDHeader is the gRPC metadata key for request correlation IDs.
	RequestIDHeader = "x-divination-request-id"
	// AccountIDHeader is the gRPC metadata key for the caller account when
	// the host runs without token verification.
	AccountIDHeader = "x-divination-account-id"
	// LocaleHeader selects the language of caller-facing error messages.
	LocaleHeader = "x-divination-locale"
	// PageSizeHeader bounds how many notifications a stream reads per page.
	PageSizeHeader = "x-divination-page-size"
	// AuthorizationHeader carries "Bearer <token>" credentials.
	AuthorizationHeader = "authorization"
)

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	if len(md) == 0 {
		return ""
	}
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}

// IncomingValue returns the first printable value of header in ctx's
// incoming metadata.
func IncomingValue(ctx context.Context, header string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return FirstMetadataValue(md, header)
}

// PageSizeFromContext returns the requested page size, or zero when absent
// or malformed.
func PageSizeFromContext(ctx context.Context) int32 {
	value := IncomingValue(ctx, PageSizeHeader)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil || parsed < 0 {
		return 0
	}
	return int32(parsed)
}

// WithOutgoingAccountID attaches the caller account to outgoing metadata.
func WithOutgoingAccountID(ctx context.Context, accountID string) context.Context {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, AccountIDHeader, accountID)
}

// WithOutgoingLocale attaches the preferred locale to outgoing metadata.
func WithOutgoingLocale(ctx context.Context, locale string) context.Context {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, LocaleHeader, locale)
}

// WithOutgoingBearer attaches a bearer token to outgoing metadata.
func WithOutgoingBearer(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, AuthorizationHeader, "Bearer "+token)
}

// UnaryServerInterceptor guarantees every unary call carries a request id
// and the caller's locale in context, and echoes the request id back.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		updatedCtx, requestID, err := ensureRequestMetadata(ctx, idGenerator)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "ensure request metadata: %v", err)
		}
		if err := grpc.SetHeader(updatedCtx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(updatedCtx, req)
	}
}

// StreamServerInterceptor is UnaryServerInterceptor for streams.
func StreamServerInterceptor(idGenerator func() (string, error)) grpc.StreamServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		updatedCtx, requestID, err := ensureRequestMetadata(stream.Context(), idGenerator)
		if err != nil {
			return status.Errorf(codes.Internal, "ensure request metadata: %v", err)
		}
		if err := stream.SetHeader(metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(srv, &WrappedServerStream{ServerStream: stream, Ctx: updatedCtx})
	}
}

// WrappedServerStream overrides the context of a server stream.
type WrappedServerStream struct {
	grpc.ServerStream
	Ctx context.Context
}

// Context returns the updated stream context.
func (w *WrappedServerStream) Context() context.Context {
	return w.Ctx
}

func ensureRequestMetadata(ctx context.Context, idGenerator func() (string, error)) (context.Context, string, error) {
	requestID := IncomingValue(ctx, RequestIDHeader)
	if requestID == "" {
		generatedID, err := idGenerator()
		if err != nil {
			return nil, "", err
		}
		requestID = generatedID
	}
	updatedCtx := requestctx.WithRequestID(ctx, requestID)
	if locale := IncomingValue(ctx, LocaleHeader); locale != "" {
		updatedCtx = requestctx.WithLocale(updatedCtx, locale)
	}
	return updatedCtx, requestID, nil
}
