package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthFunc reports why the relay is unhealthy, or nil.
type HealthFunc func() error

// Server exposes the relay's metrics and liveness over HTTP:
//
//	/metrics  Prometheus exposition of the registry
//	/health   200 "ok" while the broker session is up; 503 with the cause
//	          while it is being re-established or after it was lost
type Server struct {
	httpServer *http.Server
}

// NewServer builds the server for addr (e.g. ":9090"). A nil health
// always reports ok.
func NewServer(addr string, gatherer prometheus.Gatherer, health HealthFunc) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.Handle("/health", healthHandler(health))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if health != nil {
			if err := health(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintln(w, err.Error()) //nolint:errcheck // client went away
				return
			}
		}
		w.Write([]byte("ok")) //nolint:errcheck // client went away
	}
}

// Start listens in the background. The channel carries a listen or serve
// failure and is closed once the server has stopped.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server on %s: %w", s.httpServer.Addr, err)
		}
	}()
	return errCh
}

// Shutdown stops accepting scrapes and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
