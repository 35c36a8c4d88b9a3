package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shipcycle/internal/config"
)

func newTokenTestService() *TokenService {
	return NewTokenService(&config.Config{
		JWT: config.JWTConfig{
			SecretKey:   "token-test-secret",
			ExpireHours: 2,
		},
	})
}

func TestTokenIssueAndParse(t *testing.T) {
	svc := newTokenTestService()

	tokenString, expiresAt, err := svc.IssueToken(7, "customer")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if tokenString == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now().Add(time.Hour)) {
		t.Fatalf("expected expiry beyond 1h, got %v", expiresAt)
	}

	claims, err := svc.ParseToken(tokenString)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.AccountID != 7 {
		t.Fatalf("expected account_id 7, got %d", claims.AccountID)
	}
	if claims.Role != "customer" {
		t.Fatalf("expected role customer, got %q", claims.Role)
	}
}

func TestTokenIssueRejectsMissingIdentity(t *testing.T) {
	svc := newTokenTestService()

	if _, _, err := svc.IssueToken(0, "customer"); !errors.Is(err, ErrTokenRoleInvalid) {
		t.Fatalf("expected ErrTokenRoleInvalid for zero account, got %v", err)
	}
	if _, _, err := svc.IssueToken(7, ""); !errors.Is(err, ErrTokenRoleInvalid) {
		t.Fatalf("expected ErrTokenRoleInvalid for empty role, got %v", err)
	}
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	svc := newTokenTestService()
	other := NewTokenService(&config.Config{
		JWT: config.JWTConfig{SecretKey: "another-secret", ExpireHours: 2},
	})

	tokenString, _, err := svc.IssueToken(7, "delivery_partner")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := other.ParseToken(tokenString); err == nil {
		t.Fatal("expected parse failure with wrong secret")
	}
}

func TestTokenParseRejectsGarbage(t *testing.T) {
	svc := newTokenTestService()

	if _, err := svc.ParseToken("not-a-token"); err == nil {
		t.Fatal("expected parse failure for malformed token")
	}
}
