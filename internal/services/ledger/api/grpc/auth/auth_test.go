package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/louisbranch/divination/internal/platform/errors"
	"github.com/louisbranch/divination/internal/platform/requestctx"
	ledgermetadata "github.com/louisbranch/divination/internal/services/ledger/api/grpc/metadata"
	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newVerifier(t *testing.T) (VerifierConfig, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg, err := ParseVerifierConfig(base64.RawStdEncoding.EncodeToString(public), "divination-test", func() time.Time { return fixedNow })
	if err != nil {
		t.Fatalf("parse verifier config: %v", err)
	}
	return cfg, private
}

func signToken(t *testing.T, key ed25519.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    "divination-test",
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
	}
}

func TestParseVerifierConfig(t *testing.T) {
	cfg, err := ParseVerifierConfig("", "", nil)
	if err != nil {
		t.Fatalf("empty key: %v", err)
	}
	if cfg.Enabled() {
		t.Fatal("expected verification disabled for empty key")
	}
	if _, err := ParseVerifierConfig("AAAA", "", nil); err == nil {
		t.Fatal("expected issuer required error")
	}
	if _, err := ParseVerifierConfig("AAAA", "issuer", nil); err == nil {
		t.Fatal("expected key size error")
	}
	if _, err := ParseVerifierConfig("not base64!", "issuer", nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestVerifyToken(t *testing.T) {
	cfg, key := newVerifier(t)
	caller := account.FromIndex(7)

	got, err := VerifyToken(signToken(t, key, validClaims(caller.String())), cfg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != caller {
		t.Fatalf("caller = %s, want %s", got, caller)
	}

	expired := validClaims(caller.String())
	expired.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-time.Minute))
	wrongIssuer := validClaims(caller.String())
	wrongIssuer.Issuer = "other"
	_, otherKey, _ := ed25519.GenerateKey(rand.Reader)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: " "},
		{name: "expired", token: signToken(t, key, expired)},
		{name: "issuer", token: signToken(t, key, wrongIssuer)},
		{name: "signature", token: signToken(t, otherKey, validClaims(caller.String()))},
		{name: "subject", token: signToken(t, key, validClaims("not-an-account"))},
		{name: "garbage", token: "a.b.c"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VerifyToken(tc.token, cfg)
			if apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
				t.Fatalf("code = %s, want %s (err %v)", apperrors.CodeOf(err), apperrors.CodeUnauthenticated, err)
			}
		})
	}
}

func TestVerifyTokenRequiresConfig(t *testing.T) {
	if _, err := VerifyToken("token", VerifierConfig{}); !errors.Is(err, ErrVerifierNotConfigured) {
		t.Fatalf("err = %v, want %v", err, ErrVerifierNotConfigured)
	}
}

func TestResolveTrustsAccountHeaderWithoutVerifier(t *testing.T) {
	for _, caller := range []account.ID{account.FromIndex(1), account.FromIndex(0)} {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ledgermetadata.AccountIDHeader, caller.String()))
		got, ok, err := Authenticator{}.Resolve(ctx)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !ok || got != caller {
			t.Fatalf("caller = %s (present %t), want %s", got, ok, caller)
		}
	}

	bad := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ledgermetadata.AccountIDHeader, "0OIl"))
	if _, _, err := (Authenticator{}).Resolve(bad); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeUnauthenticated)
	}
}

func TestResolveAnonymous(t *testing.T) {
	cfg, _ := newVerifier(t)
	for _, authn := range []Authenticator{{}, {Verifier: cfg}} {
		got, ok, err := authn.Resolve(context.Background())
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if ok {
			t.Fatalf("caller = %s, want none", got)
		}
	}
}

func TestResolveIgnoresAccountHeaderWhenVerifying(t *testing.T) {
	cfg, key := newVerifier(t)
	caller := account.FromIndex(2)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		ledgermetadata.AccountIDHeader, account.FromIndex(99).String(),
		ledgermetadata.AuthorizationHeader, "Bearer "+signToken(t, key, validClaims(caller.String())),
	))
	got, ok, err := Authenticator{Verifier: cfg}.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || got != caller {
		t.Fatalf("caller = %s, want %s", got, caller)
	}

	basic := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ledgermetadata.AuthorizationHeader, "Basic abc"))
	if _, _, err := (Authenticator{Verifier: cfg}).Resolve(basic); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeUnauthenticated)
	}
}

func TestUnaryInterceptorStoresCaller(t *testing.T) {
	interceptor := Authenticator{}.UnaryServerInterceptor()
	for _, caller := range []account.ID{account.FromIndex(3), account.FromIndex(0)} {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ledgermetadata.AccountIDHeader, caller.String()))
		_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
			got, ok := CallerFromContext(ctx)
			if !ok || got != caller {
				t.Fatalf("caller = %s (%v), want %s", got, ok, caller)
			}
			return nil, nil
		})
		if err != nil {
			t.Fatalf("intercept %s: %v", caller, err)
		}
	}
}

func TestUnaryInterceptorRejectsBadCredentials(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ledgermetadata.AccountIDHeader, "bad!"))
	ctx = requestctx.WithLocale(ctx, "en-US")
	interceptor := Authenticator{}.UnaryServerInterceptor()
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		t.Fatal("handler should not run")
		return nil, nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}
}
