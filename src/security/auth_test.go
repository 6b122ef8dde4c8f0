package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func TestSessionTokenRoundTrip(t *testing.T) {
	a, err := NewAuthService(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, expiresAt, err := a.GenerateSessionToken("alice", "sid-1")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expiry should be in the future")
	}

	claims, err := a.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("ValidateSessionToken: %v", err)
	}
	if claims.Identity() != "alice" || claims.ID != "sid-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSessionTokenRejections(t *testing.T) {
	a, _ := NewAuthService(testSecret, time.Hour)
	other, _ := NewAuthService(testSecret+"-other", time.Hour)

	foreign, _, _ := other.GenerateSessionToken("alice", "sid-1")
	if _, err := a.ValidateSessionToken(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token signed with another secret must fail, got %v", err)
	}

	a.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := a.GenerateSessionToken("alice", "sid-1")
	a.now = time.Now
	if _, err := a.ValidateSessionToken(expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token must fail, got %v", err)
	}

	if _, err := a.ValidateSessionToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage must fail, got %v", err)
	}
}

func TestNewAuthServiceRejectsShortSecret(t *testing.T) {
	if _, err := NewAuthService("short", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestCSRFToken(t *testing.T) {
	a, _ := NewAuthService(testSecret, time.Hour)

	tok, err := a.GenerateCSRFToken()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.ValidateCSRFToken(tok); err != nil {
		t.Fatalf("fresh token should validate: %v", err)
	}

	nonce, _, _ := strings.Cut(tok, ".")
	for _, bad := range []string{"", "nodot", nonce + ".forged", "." + nonce} {
		if err := a.ValidateCSRFToken(bad); !errors.Is(err, ErrInvalidCSRF) {
			t.Fatalf("ValidateCSRFToken(%q) = %v", bad, err)
		}
	}
}
