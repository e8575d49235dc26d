package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/partstock-io/partstock/internal/category"
	"github.com/partstock-io/partstock/internal/importer"
	"github.com/partstock-io/partstock/internal/logging"
	"github.com/partstock-io/partstock/internal/store"
)

// handleImport runs a CSV import. The file arrives as multipart form data
// under "file"; "dry_run" and "encoding" are optional form fields. The
// header map and category rules are re-read per run so operators can edit
// them without a restart.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, http.StatusTooManyRequests)
		return
	}
	defer s.limiter.Release()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "request body too large") {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, r, fmt.Errorf("parse upload: %w", err), status)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	encoding := r.FormValue("encoding")
	if encoding == "" {
		encoding = s.cfg.Import.DefaultEncoding
	}

	headers, err := importer.LoadHeaderMap(s.cfg.Import.HeaderMapPath)
	if err != nil {
		respondError(w, r, fmt.Errorf("header map: %w", err), http.StatusInternalServerError)
		return
	}
	rules, err := category.LoadFile(s.cfg.Import.RulesPath)
	if err != nil {
		respondError(w, r, fmt.Errorf("category rules: %w", err), http.StatusInternalServerError)
		return
	}

	summary, err := s.importer.Run(r.Context(), file, importer.Options{
		Headers:  headers,
		Rules:    rules,
		DryRun:   dryRun,
		Encoding: encoding,
	})
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, summary)
}

// handleImportErrors exports the last run's rejected rows as CSV.
func (s *Server) handleImportErrors(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last := s.lastRun
	s.mu.Unlock()

	if last == nil {
		respondError(w, r, errors.New("no import has run"), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="import-errors.csv"`)
	if err := last.WriteErrorCSV(w); err != nil {
		// Headers are already out; all we can do is log.
		logging.FromContext(r.Context()).Error("write error csv", "error", err)
	}
}

func (s *Server) handleListParts(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")
	limit := queryInt(r, "limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	parts, err := s.parts.ListParts(r.Context(), search, limit, offset)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if parts == nil {
		parts = []*store.Part{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"parts": parts,
		"count": len(parts),
	})
}

func (s *Server) handleGetPart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, errors.New("invalid part id"), http.StatusBadRequest)
		return
	}

	p, err := s.parts.GetPart(r.Context(), id)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if p == nil {
		respondError(w, r, errors.New("part not found"), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePart(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, errors.New("invalid part id"), http.StatusBadRequest)
		return
	}

	deleted, err := s.parts.DeletePart(r.Context(), id)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if !deleted {
		respondError(w, r, errors.New("part not found"), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.parts.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if cats == nil {
		cats = []store.CategoryCount{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

// handleFetchDatasheet downloads the part's datasheet_url attribute into
// the blob store and records the content hash on the part.
func (s *Server) handleFetchDatasheet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, errors.New("invalid part id"), http.StatusBadRequest)
		return
	}

	p, err := s.parts.GetPart(r.Context(), id)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if p == nil {
		respondError(w, r, errors.New("part not found"), http.StatusNotFound)
		return
	}

	url := p.Attrs[importer.FieldDatasheetURL]
	if url == "" {
		respondError(w, r, errors.New("no datasheet url"), http.StatusBadRequest)
		return
	}

	sha, ext, err := s.fetcher.Fetch(r.Context(), url)
	if err != nil {
		respondError(w, r, err, http.StatusBadGateway)
		return
	}

	if err := s.parts.SetDatasheet(r.Context(), id, sha); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"sha": sha, "ext": ext})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unhealthy",
			"imports": s.limiter.Status(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.limiter.Status(),
	})
}

// queryInt parses an integer query parameter, falling back on absence or
// a malformed value.
func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
