package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-alert-triage/internal/dedup"
	"github.com/couchcryptid/storm-alert-triage/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AlertLocator serves coarse nearby-alert queries from the spatial index.
type AlertLocator interface {
	Nearby(lat, lon float64, radius int) []domain.AlertRecord
}

// StatsProvider exposes deduplication counters for the stats endpoint.
type StatsProvider interface {
	Stats() dedup.Stats
}

// Server exposes health, readiness, metrics, and dedup-stats endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /stats/dedup, and /alerts/nearby routes.
func NewServer(addr string, ready ReadinessChecker, locator AlertLocator, stats StatsProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /stats/dedup", handleDedupStats(stats))
	mux.HandleFunc("GET /alerts/nearby", handleNearby(locator))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// nearbyResponse is the /alerts/nearby payload.
type nearbyResponse struct {
	Count  int                  `json:"count"`
	Alerts []domain.AlertRecord `json:"alerts"`
}

func handleNearby(locator AlertLocator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat must be a number"})
			return
		}
		lon, err := strconv.ParseFloat(q.Get("lon"), 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lon must be a number"})
			return
		}

		radius := 1
		if s := q.Get("radius"); s != "" {
			radius, err = strconv.Atoi(s)
			if err != nil || radius < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "radius must be a non-negative integer"})
				return
			}
		}

		alerts := locator.Nearby(lat, lon, radius)
		if alerts == nil {
			alerts = []domain.AlertRecord{}
		}
		writeJSON(w, http.StatusOK, nearbyResponse{Count: len(alerts), Alerts: alerts})
	}
}

func handleDedupStats(stats StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stats.Stats())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
