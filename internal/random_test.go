package internal

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestNewVerificationToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := NewVerificationToken(now, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	b, err := NewVerificationToken(now, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if a.Token == b.Token {
		t.Fatal("tokens must differ")
	}
	raw, err := hex.DecodeString(a.Token)
	if err != nil || len(raw) != 32 {
		t.Fatalf("expected 32 hex-encoded bytes, got %q", a.Token)
	}
	if !a.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", a.ExpiresAt)
	}
}

func TestNewTwoFactorCode(t *testing.T) {
	now := time.Now()
	for i := 0; i < 200; i++ {
		c, err := NewTwoFactorCode(6, now, 10*time.Minute)
		if err != nil {
			t.Fatalf("code: %v", err)
		}
		if len(c.Code) != 6 {
			t.Fatalf("expected 6 digits, got %q", c.Code)
		}
		for _, r := range c.Code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in %q", c.Code)
			}
		}
	}
	if _, err := NewTwoFactorCode(2, now, time.Minute); err == nil {
		t.Fatal("expected error for too few digits")
	}
}

func TestTokenMatches(t *testing.T) {
	digest := HashToken("secret")
	if !TokenMatches("secret", digest) {
		t.Fatal("expected match")
	}
	if TokenMatches("other", digest) {
		t.Fatal("expected mismatch")
	}
	if CodeMatches("123456", "123457") || !CodeMatches("123456", "123456") {
		t.Fatal("code comparison broken")
	}
}
