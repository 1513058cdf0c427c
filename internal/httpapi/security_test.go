package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func currentHourBucket() int64 {
	return time.Now().UTC().Truncate(time.Hour).Unix()
}

func TestSecurityHeadersPresent(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", "", nil)

	checks := map[string]string{
		"X-Content-Type-Options":      "nosniff",
		"X-Frame-Options":             "DENY",
		"Referrer-Policy":             "strict-origin-when-cross-origin",
		"Access-Control-Allow-Origin": "http://localhost:5173",
	}
	for header, want := range checks {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("header %s: expected %q, got %q", header, want, got)
		}
	}
}

func TestPreflightReturnsNoContent(t *testing.T) {
	_, handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestCSRFTokenEndpoint(t *testing.T) {
	api, handler := newTestAPI(t)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/auth/csrf-token", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !api.validateCSRFToken(resp.CSRFToken) {
		t.Fatalf("expected issued token to validate")
	}
	if api.validateCSRFToken("deadbeef") {
		t.Fatalf("expected garbage token to fail validation")
	}
}

func TestCSRFWindowCoversPreviousHour(t *testing.T) {
	api, _ := newTestAPI(t)

	current := api.generateCSRFToken()
	if !api.validateCSRFToken(current) {
		t.Fatalf("current bucket token must validate")
	}

	// A token minted in the previous hour bucket is still inside the window.
	prev := api.csrfTokenForHour(currentHourBucket() - 3600)
	if !api.validateCSRFToken(prev) {
		t.Fatalf("previous bucket token must validate")
	}

	stale := api.csrfTokenForHour(currentHourBucket() - 7200)
	if api.validateCSRFToken(stale) {
		t.Fatalf("token two buckets old must be rejected")
	}
}

func TestLoginExemptFromCSRF(t *testing.T) {
	_, handler := newTestAPI(t)

	// No X-CSRF-Token header, yet login succeeds.
	token := loginAs(t, handler, "admin", "admin123")
	if token == "" {
		t.Fatalf("expected login without CSRF token to succeed")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, handler := newTestAPI(t)
	token := loginAs(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/products", token, "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
