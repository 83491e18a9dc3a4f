package debughttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/statebroker/pkg/broker"
	"github.com/marmos91/statebroker/pkg/metrics"
)

func TestMetricsEndpointRendersPrometheusText(t *testing.T) {
	reg := metrics.New()
	reg.ObserveOp("ping", true)

	r := NewRouter(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty metrics body")
	}
}

func TestMetricsEndpointWithoutRegistry(t *testing.T) {
	r := NewRouter(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthzReportsOK(t *testing.T) {
	r := NewRouter(nil, func() broker.HealthSnapshot {
		return broker.HealthSnapshot{OK: true, Status: "healthy"}
	})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthzReportsUnavailableWhenDegraded(t *testing.T) {
	r := NewRouter(nil, func() broker.HealthSnapshot {
		return broker.HealthSnapshot{OK: false, Status: "degraded"}
	})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestHealthzWithoutHealthFunc(t *testing.T) {
	r := NewRouter(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
