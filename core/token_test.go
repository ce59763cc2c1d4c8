package core

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-test-secret-test-secret"

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec(testSecret, 3600)
	now := time.Unix(1700000000, 0)
	roles := []Role{RoleUser, RoleAdmin}

	token, err := codec.Issue("alice", roles, now)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token is not a three-part structure: %q", token)
	}

	claims, err := codec.VerifyAndDecode(token)
	if err != nil {
		t.Fatalf("VerifyAndDecode error: %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("subject = %q, want alice", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != RoleUser || claims.Roles[1] != RoleAdmin {
		t.Errorf("roles = %v, want [USER ADMIN]", claims.Roles)
	}
	if !claims.IssuedAt.Equal(now) {
		t.Errorf("issuedAt = %v, want %v", claims.IssuedAt, now)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want %v", claims.ExpiresAt, now.Add(time.Hour))
	}
}

func TestTokenTamperedPayload(t *testing.T) {
	codec := NewTokenCodec(testSecret, 3600)
	token, err := codec.Issue("alice", []Role{RoleUser}, time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	mutated := strings.Replace(string(payload), "alice", "mallory", 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(mutated))

	_, err = codec.VerifyAndDecode(strings.Join(parts, "."))
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered token error = %v, want ErrInvalidSignature", err)
	}
}

func TestTokenWrongKey(t *testing.T) {
	codec := NewTokenCodec(testSecret, 3600)
	other := NewTokenCodec("another-secret-another-secret-12345", 3600)

	token, err := other.Issue("alice", []Role{RoleUser}, time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := codec.VerifyAndDecode(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong-key token error = %v, want ErrInvalidSignature", err)
	}
}

func TestTokenMalformed(t *testing.T) {
	codec := NewTokenCodec(testSecret, 3600)
	for _, tok := range []string{"", "not-a-token", "a.b", "a.b.c.d", "%%%.%%%.%%%"} {
		if _, err := codec.VerifyAndDecode(tok); !errors.Is(err, ErrTokenMalformed) {
			t.Errorf("VerifyAndDecode(%q) error = %v, want ErrTokenMalformed", tok, err)
		}
	}
}

func TestTokenUnknownRoleRejected(t *testing.T) {
	codec := NewTokenCodec(testSecret, 3600)
	// Issue bypasses ParseRole, so an out-of-set role can only enter via a
	// forged-but-signed token. Sign one with the real secret to prove the
	// decode-side validation rejects it.
	token, err := codec.Issue("alice", []Role{"SUPERUSER"}, time.Now())
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := codec.VerifyAndDecode(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("unknown-role token error = %v, want ErrTokenMalformed", err)
	}
}

func TestTokenExpiryBoundary(t *testing.T) {
	const ttl = 60
	codec := NewTokenCodec(testSecret, ttl)
	issued := time.Unix(1700000000, 0)

	token, err := codec.Issue("alice", []Role{RoleUser}, issued)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	claims, err := codec.VerifyAndDecode(token)
	if err != nil {
		t.Fatalf("VerifyAndDecode error: %v", err)
	}

	if codec.IsExpired(claims, issued.Add(ttl*time.Second-time.Second)) {
		t.Error("token expired one second before TTL")
	}
	if !codec.IsExpired(claims, issued.Add(ttl*time.Second)) {
		t.Error("token not expired at exact TTL boundary")
	}
	if !codec.IsExpired(claims, issued.Add(ttl*time.Second+time.Second)) {
		t.Error("token not expired after TTL")
	}
}

func TestExpiredTokenStillDecodes(t *testing.T) {
	codec := NewTokenCodec(testSecret, 60)
	issued := time.Now().Add(-time.Hour)

	token, err := codec.Issue("alice", []Role{RoleUser}, issued)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	// Signature validity and temporal validity are independent checks.
	claims, err := codec.VerifyAndDecode(token)
	if err != nil {
		t.Fatalf("VerifyAndDecode on expired token error: %v", err)
	}
	if !codec.IsExpired(claims, time.Now()) {
		t.Error("expected token to be expired")
	}
}
