package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/civicregistry/internal/core/domain"
)

func newTestTokenService(secret string, now time.Time) *TokenService {
	svc := NewTokenService(secret, "registry-test", "registry-test-api")
	svc.now = func() time.Time { return now }
	return svc
}

func testTokenUser() domain.User {
	return domain.User{Email: "clerk@example.org", Role: domain.RoleOfficer}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	issuedAt := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService("test-secret", issuedAt)

	token, err := svc.Issue(testTokenUser(), 15*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := svc.Verify(token, "clerk@example.org")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "clerk@example.org" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != string(domain.RoleOfficer) {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id claim")
	}
}

func TestTokenServiceExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	issuer := newTestTokenService("test-secret", issuedAt)

	token, err := issuer.Issue(testTokenUser(), 900*time.Second)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	before := newTestTokenService("test-secret", issuedAt.Add(899*time.Second))
	if _, err := before.Verify(token, "clerk@example.org"); err != nil {
		t.Fatalf("token must be valid one second before expiry: %v", err)
	}

	after := newTestTokenService("test-secret", issuedAt.Add(901*time.Second))
	if _, err := after.Verify(token, "clerk@example.org"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid after expiry, got %v", err)
	}
}

func TestTokenServiceVerifyRejectsGarbage(t *testing.T) {
	svc := newTestTokenService("test-secret", time.Now())

	for _, bad := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(bad, "clerk@example.org"); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Fatalf("expected invalid for %q, got %v", bad, err)
		}
	}
}

func TestTokenServiceVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	issuer := newTestTokenService("secret-a", now)
	verifier := newTestTokenService("secret-b", now)

	token, err := issuer.Issue(testTokenUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verifier.Verify(token, "clerk@example.org"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid for wrong secret, got %v", err)
	}
}

func TestTokenServiceVerifyRejectsTampering(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService("test-secret", now)

	token, err := svc.Issue(testTokenUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + "X." + parts[2]

	if _, err := svc.Verify(tampered, "clerk@example.org"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid for tampered payload, got %v", err)
	}
}

func TestTokenServiceVerifyRejectsSubjectMismatch(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService("test-secret", now)

	token, err := svc.Issue(testTokenUser(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Verify(token, "someone-else@example.org"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected invalid for subject mismatch, got %v", err)
	}
}

func TestTokenServiceExtractSubjectFromExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestTokenService("test-secret", issuedAt)

	token, err := svc.Issue(testTokenUser(), time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	late := newTestTokenService("test-secret", issuedAt.Add(time.Hour))
	if _, err := late.Verify(token, "clerk@example.org"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected expired token to fail verification, got %v", err)
	}

	subject, err := late.ExtractSubject(token)
	if err != nil {
		t.Fatalf("extract subject: %v", err)
	}
	if subject != "clerk@example.org" {
		t.Fatalf("unexpected subject %q", subject)
	}
}

func TestTokenServiceExtractSubjectMalformed(t *testing.T) {
	svc := newTestTokenService("test-secret", time.Now())

	for _, bad := range []string{"", "garbage", "a.b"} {
		if _, err := svc.ExtractSubject(bad); !errors.Is(err, domain.ErrTokenMalformed) {
			t.Fatalf("expected malformed for %q, got %v", bad, err)
		}
	}
}
