package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/legalize2/location-tracker-app/pkg/metrics"
)

// handleHealth handles GET /healthz. The endpoint doubles as the
// Prometheus scrape target; the exposition handler answers 200 with
// the current metric set, which is all a liveness probe needs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
