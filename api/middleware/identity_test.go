package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIdentityRejectsMissingHeader(t *testing.T) {
	called := false
	h := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if called {
		t.Fatal("handler should not run without identity")
	}
}

func TestIdentityRejectsOversizedHeader(t *testing.T) {
	h := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(IdentityHeader, strings.Repeat("a", maxIdentityLen+1))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestIdentityInjectsContext(t *testing.T) {
	var got string
	h := Identity(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(IdentityHeader, "  alice ")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "alice" {
		t.Fatalf("expected alice got %q", got)
	}
}
