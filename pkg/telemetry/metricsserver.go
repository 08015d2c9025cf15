package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"hyperliquidity-mm/internal/core"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the process's metrics over /metrics for a
// Prometheus scrape, independent of whatever OTel exporter Setup wired up —
// operators without a full OTel collector can still point Prometheus
// straight at the process.
type MetricsServer struct {
	port   int
	logger core.Logger
	srv    *http.Server
}

// NewMetricsServer constructs a MetricsServer bound to port.
func NewMetricsServer(port int, logger core.Logger) *MetricsServer {
	return &MetricsServer{port: port, logger: logger.With("component", "metrics_server")}
}

// Start launches the HTTP server in the background.
func (s *MetricsServer) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("starting prometheus metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err.Error())
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("stopping metrics server")
	return s.srv.Shutdown(ctx)
}
