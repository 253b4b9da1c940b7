package auth

import (
	"strings"
	"testing"
	"time"
)

func TestUserTokenService_SignAndVerify(t *testing.T) {
	svc := NewUserTokenService("test-secret")

	token, err := svc.Sign("user-123", 30*time.Minute)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected 3 dot-joined segments, got %d", len(parts))
	}

	userID, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %s", userID)
	}
}

func TestUserTokenService_Verify(t *testing.T) {
	svc := NewUserTokenService("test-secret")

	t.Run("expired token", func(t *testing.T) {
		token, err := svc.Sign("user-123", -time.Minute)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}

		if _, err := svc.Verify(token); err != ErrInvalidUserToken {
			t.Errorf("expected ErrInvalidUserToken for expired token, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := svc.Sign("user-123", time.Minute)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}

		other := NewUserTokenService("other-secret")
		if _, err := other.Verify(token); err != ErrInvalidUserToken {
			t.Errorf("expected ErrInvalidUserToken for wrong secret, got %v", err)
		}
	})

	t.Run("garbage input", func(t *testing.T) {
		for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
			if _, err := svc.Verify(input); err != ErrInvalidUserToken {
				t.Errorf("input %q: expected ErrInvalidUserToken, got %v", input, err)
			}
		}
	})

	t.Run("unsigned algorithm rejected", func(t *testing.T) {
		// alg=none style token: header+payload with empty signature
		token := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJ1c2VySWQiOiJ1c2VyLTEyMyJ9."
		if _, err := svc.Verify(token); err != ErrInvalidUserToken {
			t.Errorf("expected ErrInvalidUserToken for alg=none, got %v", err)
		}
	})
}
