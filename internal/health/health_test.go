package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fd1az/portfolio-optimizer/internal/logger"
)

func TestHealth_AllHealthy(t *testing.T) {
	s := NewServer(0, "v1.0.0", logger.NewDiscard())
	s.RegisterCheck("wallet", func(context.Context) (bool, string) { return true, "connected" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "ok" || status.Version != "v1.0.0" {
		t.Errorf("unexpected status %+v", status)
	}
	if c := status.Checks["wallet"]; !c.Healthy || c.Message != "connected" {
		t.Errorf("unexpected wallet check %+v", c)
	}
}

func TestHealth_Degraded(t *testing.T) {
	s := NewServer(0, "", logger.NewDiscard())
	s.RegisterCheck("wallet", func(context.Context) (bool, string) { return true, "" })
	s.RegisterCheck("balance_cache", func(context.Context) (bool, string) { return false, "redis down" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var status Status
	_ = json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Status != "degraded" {
		t.Errorf("expected degraded, got %s", status.Status)
	}
}

func TestReadyAndLive(t *testing.T) {
	s := NewServer(0, "", logger.NewDiscard())
	ready := false
	s.RegisterCheck("wallet", func(context.Context) (bool, string) { return ready, "" })

	tests := []struct {
		path  string
		ready bool
		code  int
		body  string
	}{
		{"/ready", false, http.StatusServiceUnavailable, "not ready"},
		{"/ready", true, http.StatusOK, "ready"},
		{"/live", false, http.StatusOK, "alive"},
	}

	for _, tt := range tests {
		ready = tt.ready

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

		if rec.Code != tt.code || rec.Body.String() != tt.body {
			t.Errorf("%s (ready=%v): got %d %q, want %d %q",
				tt.path, tt.ready, rec.Code, rec.Body.String(), tt.code, tt.body)
		}
	}
}

func TestHandle_MountsExtraRoutes(t *testing.T) {
	s := NewServer(0, "", logger.NewDiscard())
	s.Handle("/ws/wallet", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/wallet", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected mounted handler, got %d", rec.Code)
	}
}
