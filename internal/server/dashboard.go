package server

import (
	"net/http"

	"github.com/hyperjump/playground/internal/metrics"
)

func timeRange(r *http.Request) string {
	if v := r.URL.Query().Get("timeRange"); v != "" {
		return v
	}
	return metrics.DefaultRange
}

func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Metrics.Summary(r.Context(), timeRange(r))
	if err != nil {
		s.fail(w, "dashboard metrics failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDashboardModels(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Metrics.ByModel(r.Context(), timeRange(r))
	if err != nil {
		s.fail(w, "dashboard models failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDashboardAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Metrics.Analytics(r.Context(), timeRange(r))
	if err != nil {
		s.fail(w, "dashboard analytics failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleDashboardSystem(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Metrics.System())
}
