// Package auth resolves the calling account for ledger RPCs.
//
// Two modes exist. With a verifier configured, callers present an EdDSA
// bearer token whose subject is the base58 account. Without one, the host
// trusts the account header set by an upstream gateway.
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	"github.com/louisbranch/divination/internal/platform/requestctx"
	"github.com/louisbranch/divination/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"google.golang.org/grpc"
)

// ErrVerifierNotConfigured indicates a verifier without key or issuer.
var ErrVerifierNotConfigured = errors.New("token verifier is not configured")

// VerifierConfig holds bearer token verification settings.
type VerifierConfig struct {
	Issuer string
	Key    ed25519.PublicKey
	Now    func() time.Time
}

// ParseVerifierConfig builds a verifier config from a base64 ed25519 public
// key. An empty key disables verification and returns a zero config.
func ParseVerifierConfig(publicKey, issuer string, now func() time.Time) (VerifierConfig, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return VerifierConfig{}, nil
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return VerifierConfig{}, fmt.Errorf("DIVINATION_AUTH_ISSUER is required when a public key is set")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return VerifierConfig{}, fmt.Errorf("decode auth public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, fmt.Errorf("auth public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{Issuer: issuer, Key: ed25519.PublicKey(keyBytes), Now: now}, nil
}

// Enabled reports whether bearer verification is configured.
func (c VerifierConfig) Enabled() bool {
	return len(c.Key) == ed25519.PublicKeySize && c.Issuer != ""
}

// VerifyToken validates an EdDSA token and returns its subject account.
func VerifyToken(token string, cfg VerifierConfig) (account.ID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return account.ID{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}
	if !cfg.Enabled() {
		return account.ID{}, ErrVerifierNotConfigured
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	)
	if err != nil {
		return account.ID{}, mapJWTError(err)
	}

	caller, err := account.Parse(claims.Subject)
	if err != nil {
		return account.ID{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "token subject is not an account", err)
	}
	return caller, nil
}

// Authenticator resolves the caller from incoming metadata.
type Authenticator struct {
	Verifier VerifierConfig
}

// Resolve returns the caller for ctx and whether one was presented. A call
// with no credentials reports no caller so read-only RPCs stay reachable;
// presented credentials that fail verification are an error.
func (a Authenticator) Resolve(ctx context.Context) (account.ID, bool, error) {
	if a.Verifier.Enabled() {
		header := metadata.IncomingValue(ctx, metadata.AuthorizationHeader)
		if header == "" {
			return account.ID{}, false, nil
		}
		token, ok := bearerToken(header)
		if !ok {
			return account.ID{}, false, apperrors.New(apperrors.CodeUnauthenticated, "authorization header must be a bearer token")
		}
		caller, err := VerifyToken(token, a.Verifier)
		if err != nil {
			return account.ID{}, false, err
		}
		return caller, true, nil
	}

	value := metadata.IncomingValue(ctx, metadata.AccountIDHeader)
	if value == "" {
		return account.ID{}, false, nil
	}
	caller, err := account.Parse(value)
	if err != nil {
		return account.ID{}, false, apperrors.Wrap(apperrors.CodeUnauthenticated, "account header is not a valid account", err)
	}
	return caller, true, nil
}

// UnaryServerInterceptor places the resolved caller in context.
func (a Authenticator) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		updated, err := a.withCaller(ctx)
		if err != nil {
			return nil, apperrors.GRPCStatus(err, requestctx.LocaleFromContext(ctx))
		}
		return handler(updated, req)
	}
}

// StreamServerInterceptor places the resolved caller in stream context.
func (a Authenticator) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := stream.Context()
		updated, err := a.withCaller(ctx)
		if err != nil {
			return apperrors.GRPCStatus(err, requestctx.LocaleFromContext(ctx))
		}
		return handler(srv, &metadata.WrappedServerStream{ServerStream: stream, Ctx: updated})
	}
}

func (a Authenticator) withCaller(ctx context.Context) (context.Context, error) {
	caller, ok, err := a.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return ctx, nil
	}
	return requestctx.WithAccountID(ctx, caller.String()), nil
}

// CallerFromContext returns the authenticated account, if any.
func CallerFromContext(ctx context.Context) (account.ID, bool) {
	value := requestctx.AccountIDFromContext(ctx)
	if value == "" {
		return account.ID{}, false
	}
	caller, err := account.Parse(value)
	if err != nil {
		return account.ID{}, false
	}
	return caller, true
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "bearer token expired", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "bearer token issuer mismatch", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "bearer token signature invalid", err)
	default:
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "bearer token invalid", err)
	}
}

func decodeBase64(value string) ([]byte, error) {
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
