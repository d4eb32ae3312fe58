package auth

import (
	"testing"
	"time"
)

func TestSignAndVerifyRoundTrip(t *testing.T) {
	claims := NewClaims("user-1", "amina@example.com", RolePatient, time.Hour)
	token, err := SignHS256(claims, "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := VerifyHS256(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Sub != "user-1" || got.Email != "amina@example.com" || got.Role != RolePatient {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignHS256(NewClaims("user-1", "a@b.c", RolePatient, time.Hour), "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyHS256(token, "other"); err == nil {
		t.Fatal("expected verification failure for wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := SignHS256(NewClaims("user-1", "a@b.c", RolePatient, -time.Minute), "secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyHS256(token, "secret"); err == nil {
		t.Fatal("expected verification failure for expired token")
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q ok=%v", tok, ok)
	}
	if _, ok := BearerToken("Basic abc"); ok {
		t.Fatal("expected Basic header to be rejected")
	}
	if _, ok := BearerToken(""); ok {
		t.Fatal("expected empty header to be rejected")
	}
}
