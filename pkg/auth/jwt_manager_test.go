package auth

import (
	"net/http"
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, err := m.Generate("pid-1", "alice", "user", "track-7")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "pid-1" || claims.DisplayName != "alice" || claims.Role != "user" || claims.TrackingID != "track-7" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, _ := m.Generate("pid-1", "alice", "user", "")

	other := NewTokenManager("another-secret", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Fatalf("token signed with different secret accepted")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewTokenManager("secret", -time.Minute)
	token, _ := m.Generate("pid-1", "alice", "user", "")

	if _, err := m.Verify(token); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	if _, err := m.Verify("not-a-token"); err == nil {
		t.Fatalf("garbage accepted")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")

	token, err := ExtractTokenFromHeader(r)
	if err != nil || token != "abc.def.ghi" {
		t.Fatalf("token = %q, err = %v", token, err)
	}

	r.Header.Set("Authorization", "abc.def.ghi")
	if _, err := ExtractTokenFromHeader(r); err == nil {
		t.Fatalf("header without scheme accepted")
	}
}
