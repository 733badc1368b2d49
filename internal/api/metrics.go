package api

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
)

// handleMetrics serves access layer, HTTP and process metrics in Prometheus
// text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if s.metrics != nil {
		s.metrics.WritePrometheus(w)
	}
	s.httpMetrics.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
