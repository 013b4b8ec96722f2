package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adreview-backend/internal/shared/config"
)

func TestRouterHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterDeps{Config: config.Config{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "batch_started_total") {
		t.Fatalf("metrics body: %s", rec.Body.String())
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9090":  ":9090",
		":7070": ":7070",
	}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
