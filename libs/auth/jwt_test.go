package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	secret := "test-secret"
	token, err := Issue("admin@clinica.test", RoleAdmin, secret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != "admin@clinica.test" || parsed.Role != RoleAdmin {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestHS256Expired(t *testing.T) {
	token, err := Issue("admin", RoleAdmin, "s", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "s"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestHS256RejectsOtherAlg(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "x", Role: RoleAdmin}, "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parts := strings.Split(token, ".")
	raw, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	parts[0] = base64.RawURLEncoding.EncodeToString(raw)
	if _, err := ParseAndVerifyHS256(strings.Join(parts, "."), "s"); err == nil {
		t.Fatal("expected alg=none to be rejected")
	}
}

func TestAdminCredentials(t *testing.T) {
	hash, err := HashPassword("pass123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	creds := AdminCredentials{Email: "Admin@Clinica.test", PasswordHash: hash}
	if err := creds.Check("admin@clinica.test", "pass123"); err != nil {
		t.Fatalf("expected valid credentials: %v", err)
	}
	if err := creds.Check("admin@clinica.test", "wrong"); err == nil {
		t.Fatal("expected wrong password to fail")
	}
	if err := creds.Check("other@clinica.test", "pass123"); err == nil {
		t.Fatal("expected wrong email to fail")
	}
	if err := (AdminCredentials{}).Check("", ""); err == nil {
		t.Fatal("expected unconfigured credentials to fail")
	}
}

func TestVerifyAtUsesGivenClock(t *testing.T) {
	issued := time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC)
	token, err := Issue("admin", RoleAdmin, "s", time.Hour, issued)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := verifyAt(token, "s", issued.Add(30*time.Minute)); err != nil {
		t.Fatalf("expected token valid within ttl: %v", err)
	}
	if _, err := verifyAt(token, "s", issued.Add(2*time.Hour)); err == nil {
		t.Fatal("expected token rejected after ttl")
	}
	if _, err := verifyAt(token+".extra", "s", issued); err == nil {
		t.Fatal("expected four-part token rejected")
	}
}
