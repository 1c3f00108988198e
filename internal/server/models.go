package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/provider"
	"go.uber.org/zap"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := models.NewPromptRequest()
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("generate request", zap.String("provider", string(req.Provider)), zap.String("model", req.ModelName))
	s.respondJSON(w, http.StatusOK, s.deps.Generation.Generate(r.Context(), req.GenerationRequest()))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req models.ComparisonRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("compare request", zap.Strings("models", req.Models))
	s.respondJSON(w, http.StatusOK, s.deps.Generation.Compare(r.Context(), req))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req models.ModelDownloadRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.deps.Downloads == nil {
		s.respondError(w, http.StatusInternalServerError, "model downloads are not available")
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Downloads.Request(req))
}

func (s *Server) handleDownloadStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "model name is required")
		return
	}
	if s.deps.Downloads == nil {
		s.respondError(w, http.StatusInternalServerError, "model downloads are not available")
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Downloads.Status(name))
}

func (s *Server) handleDownloadDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "model name is required")
		return
	}
	if s.deps.Downloads == nil {
		s.respondError(w, http.StatusInternalServerError, "model downloads are not available")
		return
	}
	canceled := s.deps.Downloads.Cancel(name)
	removed, err := s.deps.Downloads.Delete(name)
	if err != nil {
		s.fail(w, "model delete failed", err)
		return
	}
	if !canceled && !removed {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Model '%s' not found", name))
		return
	}
	s.respondMessage(w, fmt.Sprintf("Model '%s' removed successfully", name))
}

func (s *Server) handleDownloaded(w http.ResponseWriter, r *http.Request) {
	if s.deps.Downloads == nil {
		s.respondJSON(w, http.StatusOK, []string{})
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Downloads.Downloaded())
}

// handleAvailable lists the local catalog with download state. Without a
// tracker every model is reported as not started.
func (s *Server) handleAvailable(w http.ResponseWriter, r *http.Request) {
	names := provider.AvailableModels()
	out := make([]models.AvailableModel, len(names))
	for i, name := range names {
		out[i] = models.AvailableModel{Name: name, Status: models.DownloadNotStarted}
		if s.deps.Downloads != nil {
			out[i].Status = s.deps.Downloads.Status(name).Status
			out[i].Downloaded = out[i].Status == models.DownloadCompleted
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, provider.ModelInfo())
}
