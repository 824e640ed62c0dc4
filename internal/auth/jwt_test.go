package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("secret", time.Hour)

	raw, exp, err := m.Issue("sid-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry must be in the future")
	}

	sid, err := m.VerifySession(raw)
	if err != nil || sid != "sid-1" {
		t.Fatalf("verify = %q, %v", sid, err)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewManager("secret", time.Hour)
	raw, _, _ := m.Issue("sid-1")

	other := NewManager("other-secret", time.Hour)
	if _, err := other.VerifySession(raw); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}

	expired := NewManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue("sid-2")
	if _, err := m.VerifySession(old); err == nil {
		t.Fatalf("expired token must fail")
	}

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: "sid-3",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, _ := wrongType.SignedString([]byte("secret"))
	if _, err := m.VerifySession(s); err != ErrInvalidTokenType {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "x", TokenType: "session"})
	ns, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := m.VerifySession(ns); err == nil {
		t.Fatalf("unsigned token must fail")
	}
}
