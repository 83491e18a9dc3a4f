// Package debughttp is an optional loopback HTTP surface for humans
// inspecting a running broker without a client binary: Prometheus text
// exposition at /metrics and a liveness probe at /healthz, alongside the
// broker's actual socket/pipe transport.
package debughttp

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/statebroker/internal/logger"
	"github.com/marmos91/statebroker/pkg/broker"
	"github.com/marmos91/statebroker/pkg/metrics"
)

func newLoopbackListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// HealthFunc produces a fresh health snapshot on demand; wired to the same
// handler the socket protocol's "health" action calls, so both surfaces
// report identical data.
type HealthFunc func() broker.HealthSnapshot

// NewRouter builds the chi mux serving /metrics and /healthz. reg may be
// nil (metrics rendering then reports an error); health may be nil (the
// endpoint then reports 503 without attempting a snapshot).
func NewRouter(reg *metrics.Registry, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if reg == nil {
			http.Error(w, "metrics not configured", http.StatusServiceUnavailable)
			return
		}
		text, err := reg.Render()
		if err != nil {
			logger.Error("failed to render metrics", logger.Err(err))
			http.Error(w, "failed to render metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.Write([]byte(text))
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health == nil {
			http.Error(w, "health not configured", http.StatusServiceUnavailable)
			return
		}
		snap := health()
		w.Header().Set("Content-Type", "application/json")
		if !snap.OK || snap.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logger.Error("failed to encode health snapshot", logger.Err(err))
		}
	})

	return r
}

// Serve binds addr and starts an HTTP server running NewRouter's mux on its
// own goroutine, returning as soon as the listener is bound (or with the
// bind error). Callers stop it via the returned server's Shutdown/Close.
func Serve(addr string, reg *metrics.Registry, health HealthFunc) (*http.Server, error) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(reg, health),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	ln, err := newLoopbackListener(addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("debug http server stopped", logger.Err(err))
		}
	}()
	return srv, nil
}
