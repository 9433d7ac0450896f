package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/mocks"
)

const testSecret = "test-secret-key-0123456789"

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestService(t *testing.T, d time.Duration) *JWTService {
	t.Helper()
	svc, err := NewJWTService(testSecret, d, "kogoto", mocks.NewMockStore(), newTestLogger())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return svc
}

func TestNewJWTService_WeakSecret(t *testing.T) {
	_, err := NewJWTService("short", time.Hour, "", mocks.NewMockStore(), newTestLogger())
	if !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
}

func TestIssueGuest_RoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	svc := newTestService(t, time.Hour)

	// Act
	tok, err := svc.IssueGuest(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	claims, err := svc.ValidateToken(tok.Token)

	// Assert
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.Subject != tok.Learner.ID {
		t.Errorf("expected subject %s, got %s", tok.Learner.ID, claims.Subject)
	}
	if claims.Issuer != "kogoto" {
		t.Errorf("expected issuer kogoto, got %s", claims.Issuer)
	}
	if _, err := svc.Learner(ctx, tok.Learner.ID); err != nil {
		t.Errorf("expected learner to be stored, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newTestService(t, -time.Minute)

	tok, err := svc.IssueGuest(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err = svc.ValidateToken(tok.Token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := newTestService(t, time.Hour)
	other, _ := NewJWTService("another-secret-0123456789", time.Hour, "kogoto", mocks.NewMockStore(), newTestLogger())

	tok, _ := other.IssueGuest(context.Background())

	if _, err := svc.ValidateToken(tok.Token); err == nil {
		t.Fatal("expected error for token signed with another key")
	}
}

func TestValidateToken_RejectsOtherTypesAndAlgorithms(t *testing.T) {
	svc := newTestService(t, time.Hour)

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "l1", Issuer: "kogoto", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Type:             "refresh",
	})
	s, _ := wrongType.SignedString([]byte(testSecret))
	if _, err := svc.ValidateToken(s); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for refresh type, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "l1", Issuer: "kogoto"},
		Type:             tokenTypeLearner,
	})
	s, _ = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := svc.ValidateToken(s); err == nil {
		t.Error("expected alg=none token to be rejected")
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Hour)

	first, _ := svc.IssueGuest(ctx)
	second, err := svc.Refresh(ctx, first.Token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if second.Learner.ID != first.Learner.ID {
		t.Errorf("expected same learner, got %s", second.Learner.ID)
	}
	if second.Token == first.Token {
		t.Error("expected a new token")
	}

	if _, err := svc.Refresh(ctx, "garbage"); err == nil {
		t.Error("expected error for garbage token")
	}
}

func TestResolveSecret(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	static := strings.Repeat("s", MinSecretLength)

	got, err := ResolveSecret(ctx, static, &mocks.MockSecretSource{SecretFunc: func(_ context.Context, path, field string) (string, error) {
		if path != "kv/kogoto" || field != "jwt_secret" {
			return "", errors.New("unexpected path")
		}
		return "from-vault-0123456789", nil
	}}, "kv/kogoto", "jwt_secret", log)
	if err != nil || got != "from-vault-0123456789" {
		t.Errorf("expected vault secret, got %q (%v)", got, err)
	}

	got, err = ResolveSecret(ctx, static, &mocks.MockSecretSource{SecretFunc: func(context.Context, string, string) (string, error) {
		return "", errors.New("sealed")
	}}, "kv/kogoto", "jwt_secret", log)
	if err != nil || got != static {
		t.Errorf("expected static fallback, got %q (%v)", got, err)
	}

	if _, err := ResolveSecret(ctx, "short", nil, "", "", log); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("expected ErrWeakSecret, got %v", err)
	}
}
