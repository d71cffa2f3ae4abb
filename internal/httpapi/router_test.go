package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carwash/pkg/config"
	"carwash/pkg/logging"
	"carwash/pkg/session"
)

func testDeps() Dependencies {
	return Dependencies{
		Cfg: config.Config{
			Session:        config.SessionConfig{Secret: "test-secret", Audience: "carwash-api", TTL: time.Hour},
			Location:       time.UTC,
			AllowedOrigins: []string{"https://app.example.com"},
		},
		Log: logging.Discard(),
	}
}

func token(t *testing.T, id session.Identity) string {
	t.Helper()
	tok, err := session.Issue(id, "carwash-api", "test-secret", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func TestRouter_Healthz(t *testing.T) {
	h := NewRouter(testDeps())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_SessionAndRoles(t *testing.T) {
	h := NewRouter(testDeps())
	customer := token(t, session.Identity{UserID: 42, Role: session.RoleCustomer})
	business := token(t, session.Identity{UserID: 5, Role: session.RoleCarwash, CarwashID: 7})

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/v1/bookings", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/bookings", "nope", http.StatusUnauthorized},
		{"customer on business route", http.MethodGet, "/v1/business/status", customer, http.StatusForbidden},
		{"business on customer route", http.MethodPost, "/v1/bookings/1/cancel", business, http.StatusForbidden},
		{"unknown route", http.MethodGet, "/v1/nope", customer, http.StatusNotFound},
	}
	for _, c := range cases {
		req := httptest.NewRequest(c.method, c.path, nil)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Fatalf("%s: expected %d, got %d: %s", c.name, c.want, rec.Code, rec.Body.String())
		}
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := NewRouter(testDeps())
	req := httptest.NewRequest(http.MethodOptions, "/v1/bookings", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin header, got %q (status %d)", got, rec.Code)
	}
}
