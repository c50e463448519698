package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCallerAuthExtractsIdentity(t *testing.T) {
	var got Identity
	var ok bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	mw := CallerAuth("test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", "doc-1", "clinician"))
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !ok {
		t.Fatalf("expected identity in context")
	}
	if got.UserID != "doc-1" || got.Role != "clinician" {
		t.Fatalf("unexpected identity: %+v", got)
	}
}

func TestCallerAuthRejectsMissingHeader(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	})

	mw := CallerAuth("test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestCallerAuthRejectsWrongSecret(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	})

	mw := CallerAuth("test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "doc-1", "clinician"))
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestCallerAuthRejectsTokenWithoutRole(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "doc-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	})

	mw := CallerAuth("test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestCallerAuthPassthroughWithoutSecret(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Fatalf("expected no identity in passthrough mode")
		}
		w.WriteHeader(http.StatusOK)
	})

	mw := CallerAuth("")
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", nil)
	rec := httptest.NewRecorder()

	mw(handler).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
}
