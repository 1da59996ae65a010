package auth

import (
	"context"
	"slices"
	"testing"
	"time"
)

const testSecret = "test-secret-0123456789"

func TestIssueAndParse(t *testing.T) {
	iss, err := NewIssuer(testSecret, "pitaka-test", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, expiresAt, err := iss.Issue("user-42", "ana@example.com", []string{"Admin", "user", "admin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	claims, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-42" || claims.Email != "ana@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
	if len(claims.Roles) != 2 || !slices.Contains(claims.Roles, RoleAdmin) || !slices.Contains(claims.Roles, RoleUser) {
		t.Fatalf("roles were not normalised: %v", claims.Roles)
	}
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	iss, err := NewIssuer(testSecret, "pitaka-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	other, err := NewIssuer("another-secret-0123456789", "pitaka-test", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	foreign, _, err := other.Issue("user-1", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iss.Parse(foreign); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong signature, got %v", err)
	}

	past := time.Now().Add(-3 * time.Hour)
	stale, err := NewIssuer(testSecret, "pitaka-test", time.Hour, WithClock(func() time.Time { return past }))
	if err != nil {
		t.Fatal(err)
	}
	expired, _, err := stale.Issue("user-1", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iss.Parse(expired); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := iss.Parse("   "); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for blank token, got %v", err)
	}
}

func TestNewIssuerValidation(t *testing.T) {
	if _, err := NewIssuer("", "x", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewIssuer("short", "x", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewIssuer(testSecret, "x", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithUser(context.Background(), " user-7 ", []string{"USER", "admin", "user"})
	id, ok := UserIDFromContext(ctx)
	if !ok || id != "user-7" {
		t.Fatalf("UserIDFromContext = %q, %v", id, ok)
	}
	if !HasRole(ctx, "Admin") || HasRole(ctx, "auditor") {
		t.Fatalf("unexpected roles %v", RolesFromContext(ctx))
	}
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Fatal("expected no user on empty context")
	}
}

func TestPasswordHashing(t *testing.T) {
	if _, err := HashPassword("short"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong horse"); err == nil {
		t.Fatal("expected mismatch")
	}
}
