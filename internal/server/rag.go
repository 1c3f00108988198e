package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/playground/internal/models"
	"go.uber.org/zap"
)

const (
	multipartMemory = 32 << 20
	// multipartSlack covers multipart framing around the file part.
	multipartSlack = 1 << 20
	searchLimit    = 50
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.deps.Indexer.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds the %d byte limit", maxBytes))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	opts, err := uploadOptions(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Indexer.CheckUpload(header.Filename, header.Size); err != nil {
		s.fail(w, "upload rejected", err)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	s.logger.Debug("upload request",
		zap.String("file", header.Filename),
		zap.String("collection", opts.CollectionName),
		zap.Int("chunk_size", opts.ChunkSize))
	res, err := s.deps.Indexer.IngestBytes(r.Context(), header.Filename, content, opts)
	if err != nil {
		s.fail(w, "upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// uploadOptions reads the ingestion parameters from the form or query string.
func uploadOptions(r *http.Request) (models.UploadOptions, error) {
	opts := models.NewUploadOptions()
	if v := strings.TrimSpace(r.FormValue("collection_name")); v != "" {
		opts.CollectionName = v
	}
	var err error
	if opts.ChunkSize, err = intValue(r, "chunk_size", opts.ChunkSize); err != nil {
		return opts, err
	}
	if opts.ChunkOverlap, err = intValue(r, "chunk_overlap", opts.ChunkOverlap); err != nil {
		return opts, err
	}
	opts.Description = r.FormValue("description")
	for _, t := range strings.Split(r.FormValue("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			opts.Tags = append(opts.Tags, t)
		}
	}
	if v := r.FormValue("is_public"); v != "" {
		if opts.IsPublic, err = strconv.ParseBool(v); err != nil {
			return opts, fmt.Errorf("is_public must be a boolean")
		}
	}
	if err := models.Validate(opts); err != nil {
		return opts, err
	}
	return opts, nil
}

func intValue(r *http.Request, key string, def int) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req := models.NewRAGRequest()
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("rag query", zap.String("collection", req.CollectionName), zap.Int("top_k", req.TopK))
	resp, err := s.deps.RAG.Query(r.Context(), req)
	if err != nil {
		s.fail(w, "rag query failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCollectionsList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.deps.Collections.List(r.Context())
	if err != nil {
		s.fail(w, "list collections failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCollectionsSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	infos, err := s.deps.Collections.Search(r.Context(), q, searchLimit)
	if err != nil {
		s.fail(w, "search collections failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCollectionGet(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Collections.Info(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "get collection failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCollectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Collections.Stats(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "collection stats failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCollectionUpdate(w http.ResponseWriter, r *http.Request) {
	var patch models.CollectionMetaPatch
	if !s.decode(w, r, &patch) {
		return
	}
	info, err := s.deps.Collections.Update(r.Context(), chi.URLParam(r, "name"), patch)
	if err != nil {
		s.fail(w, "update collection failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCollectionExport(w http.ResponseWriter, r *http.Request) {
	export, err := s.deps.Collections.Export(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "export collection failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, export)
}

func (s *Server) handleCollectionDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	found, err := s.deps.Collections.Delete(r.Context(), name)
	if err != nil {
		s.fail(w, "delete collection failed", err)
		return
	}
	if !found {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Collection '%s' not found", name))
		return
	}
	s.respondMessage(w, fmt.Sprintf("Collection '%s' deleted successfully", name))
}

func (s *Server) handleCollectionsMerge(w http.ResponseWriter, r *http.Request) {
	var req models.MergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	info, err := s.deps.Collections.Merge(r.Context(), &req)
	if err != nil {
		s.fail(w, "merge collections failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCollectionsBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req models.BulkDeleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.deps.Collections.BulkDelete(r.Context(), req.Names)
	if err != nil {
		s.fail(w, "bulk delete failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}
