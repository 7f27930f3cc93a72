package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brunobiangulo/progspec"
)

type handler struct {
	engine        progspec.Engine
	maxUploadSize int64
}

func newHandler(e progspec.Engine, maxUploadSize int64) *handler {
	if maxUploadSize <= 0 {
		maxUploadSize = progspec.DefaultConfig().MaxUploadSize
	}
	return &handler{engine: e, maxUploadSize: maxUploadSize}
}

// POST /programme-specifications
// Multipart upload with the document in the "file" field. The original file
// name is kept because it carries the programme code and academic year.
// ?dry_run=true returns the extracted record without loading it.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if r.ContentLength > h.maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart form with 'file'")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)
	if safeName == "." || safeName == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "file name is required")
		return
	}

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	tmpDir, err := os.MkdirTemp("", "progspec-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp dir", "error", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process file")
		slog.Error("creating temp file", "error", err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	dst.Close()

	if dryRun {
		rec, rep, err := h.engine.Parse(ctx, tmpPath)
		if err != nil {
			writeEngineError(w, "parse failed", err)
			slog.Error("parse error", "filename", safeName, "error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"filename": safeName,
			"record":   rec,
			"report":   rep,
		})
		return
	}

	res, err := h.engine.Ingest(ctx, tmpPath, progspec.WithFilename(safeName))
	if err != nil {
		writeEngineError(w, "ingestion failed", err)
		slog.Error("ingest error", "filename", safeName, "error", err)
		return
	}
	res.Path = ""

	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// GET /courses
func (h *handler) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.engine.Courses(r.Context())
	if err != nil {
		writeEngineError(w, "failed to list courses", err)
		slog.Error("list courses error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": orEmpty(courses)})
}

// GET /modules?q=term
// An empty or "*" term lists every module.
func (h *handler) handleSearchModules(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		term = "*"
	}
	mods, err := h.engine.SearchModules(r.Context(), term)
	if err != nil {
		writeEngineError(w, "module search failed", err)
		slog.Error("search modules error", "q", term, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": orEmpty(mods)})
}

// GET /modules/{code}
func (h *handler) handleGetModule(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	info, err := h.engine.Module(r.Context(), code)
	if err != nil {
		writeEngineError(w, "failed to load module", err)
		if !errors.Is(err, progspec.ErrNotFound) {
			slog.Error("get module error", "code", code, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GET /imports
func (h *handler) handleListImports(w http.ResponseWriter, r *http.Request) {
	imports, err := h.engine.Imports(r.Context())
	if err != nil {
		writeEngineError(w, "failed to list imports", err)
		slog.Error("list imports error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": orEmpty(imports)})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Store().Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"catalog": stats,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine sentinels to status codes. Client-caused
// failures carry the error text; everything else gets msg only.
func writeEngineError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, progspec.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, progspec.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, progspec.ErrParsingFailed),
		errors.Is(err, progspec.ErrInvalidRecord),
		errors.Is(err, progspec.ErrNotLoadable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, progspec.ErrStoreClosed):
		writeError(w, http.StatusServiceUnavailable, msg)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, msg)
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
