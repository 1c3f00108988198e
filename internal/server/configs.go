package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/storage"
)

const configNotFound = "Configuration not found"

func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	var req models.PromptConfigSaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	cfg := storage.NewPromptConfig(&req)
	if err := s.deps.Configs.Save(r.Context(), cfg); err != nil {
		s.fail(w, "save config failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleConfigList(w http.ResponseWriter, r *http.Request) {
	cfgs, err := s.deps.Configs.List(r.Context())
	if err != nil {
		s.fail(w, "list configs failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(cfgs))
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.Configs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.configError(w, "get config failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req models.PromptConfigSaveRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	existing, err := s.deps.Configs.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.configError(w, "get config failed", err)
		return
	}
	updated, err := storage.MergePromptConfig(existing, &req)
	if err != nil {
		s.fail(w, "merge config failed", err)
		return
	}
	if err := s.deps.Configs.Update(ctx, updated); err != nil {
		s.configError(w, "update config failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleConfigDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Configs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.configError(w, "delete config failed", err)
		return
	}
	s.respondMessage(w, "Configuration deleted successfully")
}

func (s *Server) handleConfigSearch(w http.ResponseWriter, r *http.Request) {
	cfgs, err := s.deps.Configs.SearchByTag(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		s.fail(w, "search configs failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, nonNil(cfgs))
}

func (s *Server) configError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, configNotFound)
		return
	}
	s.fail(w, msg, err)
}

func nonNil(cfgs []*models.PromptConfig) []*models.PromptConfig {
	if cfgs == nil {
		return []*models.PromptConfig{}
	}
	return cfgs
}
