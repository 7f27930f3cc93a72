// Package progspec extracts module catalogs from Programme Specification
// documents and loads them into a SQLite-backed catalog.
package progspec

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/progspec/parser"
	"github.com/brunobiangulo/progspec/store"
	"github.com/brunobiangulo/progspec/validate"
)

// Engine is the main entry point for parsing and loading Programme
// Specifications.
type Engine interface {
	// Parse extracts the record from a document without touching the catalog.
	Parse(ctx context.Context, path string) (*parser.Record, *parser.Report, error)

	// Ingest parses, validates and loads a document. Skips documents whose
	// content hash was already imported unless WithForceReparse is given.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error)

	// IngestAll ingests paths concurrently. Per-document failures are
	// reported in the results; the error is only set when ctx ends early.
	IngestAll(ctx context.Context, paths []string, opts ...IngestOption) ([]IngestResult, error)

	// Courses lists every course in the catalog.
	Courses(ctx context.Context) ([]store.Course, error)

	// Module returns a module and its iterations by code, or ErrNotFound.
	Module(ctx context.Context, code string) (*ModuleInfo, error)

	// SearchModules matches modules by code or name; "*" lists all.
	SearchModules(ctx context.Context, term string) ([]store.ModuleSummary, error)

	// Imports lists loaded documents, newest first.
	Imports(ctx context.Context) ([]store.Import, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// IngestResult reports the outcome of ingesting one document.
type IngestResult struct {
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	ContentHash string            `json:"content_hash"`
	Skipped     bool              `json:"skipped"`
	ImportID    string            `json:"import_id,omitempty"`
	Load        *store.LoadResult `json:"load,omitempty"`
	Record      *parser.Record    `json:"record,omitempty"`
	Report      *parser.Report    `json:"report,omitempty"`
	Err         error             `json:"-"`
	Error       string            `json:"error,omitempty"`
}

// ModuleInfo is a module with every academic year it has been offered in.
type ModuleInfo struct {
	store.Module
	Iterations []store.ModuleIteration `json:"iterations"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
	filename     string
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

// WithFilename records name instead of the path's base name in the import
// audit, e.g. the client-side name of an upload.
func WithFilename(name string) IngestOption {
	return func(o *ingestOptions) { o.filename = name }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg    Config
	store  *store.Store
	parser *parser.Parser
	closed atomic.Bool
}

// New creates a new engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.IngestConcurrency == 0 {
		cfg.IngestConcurrency = DefaultConfig().IngestConcurrency
	}

	s, err := store.New(cfg.resolveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	return &engine{
		cfg:    cfg,
		store:  s,
		parser: parser.New(slog.Default()),
	}, nil
}

// Parse extracts a record without persisting anything.
func (e *engine) Parse(ctx context.Context, path string) (*parser.Record, *parser.Report, error) {
	if e.closed.Load() {
		return nil, nil, ErrStoreClosed
	}
	rec, rep, err := e.parser.Parse(ctx, path)
	if err != nil {
		return nil, nil, wrapParseError(err)
	}
	return rec, rep, nil
}

// Ingest processes a document through the full pipeline.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (*IngestResult, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	filename := options.filename
	if filename == "" {
		filename = filepath.Base(absPath)
	}
	res := &IngestResult{Path: absPath, Filename: filename, ContentHash: hash}

	// Check if this exact document was already imported
	if !options.forceReparse {
		existing, err := e.store.GetImportByHash(ctx, hash)
		switch {
		case err == nil:
			slog.Info("ingest: unchanged document skipped", "file", filename, "import_id", existing.ID)
			res.Skipped = true
			res.ImportID = existing.ID
			return res, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("looking up import: %w", err)
		}
	}

	slog.Info("ingest: parsing document", "file", filename)
	parseStart := time.Now()

	rec, rep, err := e.parser.Parse(ctx, absPath)
	if err != nil {
		return nil, wrapParseError(err)
	}
	res.Record, res.Report = rec, rep

	slog.Info("ingest: parsing complete",
		"file", filename, "pages", rep.Pages, "years", len(rec.ModulesByYear),
		"modules", rep.Modules, "rejected", len(rep.Rejected),
		"elapsed", time.Since(parseStart).Round(time.Millisecond))

	if err := validate.Record(rec); err != nil {
		return res, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	load, err := e.store.Load(ctx, rec, store.ImportMeta{
		Filename:     filename,
		ContentHash:  hash,
		SkipImported: !options.forceReparse,
	})
	var dup *store.AlreadyImportedError
	if errors.As(err, &dup) {
		// Another Ingest of the same bytes committed after our lookup.
		slog.Info("ingest: unchanged document skipped", "file", filename, "import_id", dup.ImportID)
		res.Skipped = true
		res.ImportID = dup.ImportID
		return res, nil
	}
	if err != nil {
		if errors.Is(err, store.ErrMissingAcademicYear) || errors.Is(err, store.ErrMissingProgrammeCode) {
			return res, fmt.Errorf("%w: %v", ErrNotLoadable, err)
		}
		return res, fmt.Errorf("loading catalog: %w", err)
	}
	res.Load = load
	res.ImportID = load.ImportID

	slog.Info("ingest: catalog loaded",
		"file", filename, "import_id", load.ImportID, "programme", rec.Programme.Code,
		"academic_year", rec.Programme.AcademicYear, "courses", load.Courses,
		"modules", load.Modules)

	return res, nil
}

// IngestAll ingests documents with at most cfg.IngestConcurrency in flight.
// A path given more than once is ingested once. Its later entries are
// reported as skipped with the first entry's import, or with its error.
func (e *engine) IngestAll(ctx context.Context, paths []string, opts ...IngestOption) ([]IngestResult, error) {
	results := make([]IngestResult, len(paths))

	first := make(map[string]int, len(paths))
	dupOf := make([]int, len(paths))
	for i, path := range paths {
		dupOf[i] = -1
		key := path
		if abs, err := filepath.Abs(path); err == nil {
			key = abs
		}
		if j, ok := first[key]; ok {
			dupOf[i] = j
			continue
		}
		first[key] = i
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.IngestConcurrency)
	for i, path := range paths {
		if dupOf[i] >= 0 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = IngestResult{Path: path, Err: err, Error: err.Error()}
				return nil
			}
			res, err := e.Ingest(ctx, path, opts...)
			if res == nil {
				res = &IngestResult{Path: path}
			}
			if err != nil {
				slog.Warn("ingest: document failed", "path", path, "error", err)
				res.Err = err
				res.Error = err.Error()
			}
			results[i] = *res
			return nil
		})
	}
	g.Wait()

	for i, j := range dupOf {
		if j < 0 {
			continue
		}
		results[i] = results[j]
		if results[i].Err == nil {
			results[i].Skipped = true
			results[i].Load, results[i].Record, results[i].Report = nil, nil, nil
		}
	}
	return results, ctx.Err()
}

// Courses lists the catalog's courses.
func (e *engine) Courses(ctx context.Context) ([]store.Course, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	return e.store.ListCourses(ctx)
}

// Module looks a module up by code.
func (e *engine) Module(ctx context.Context, code string) (*ModuleInfo, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	mods, err := e.store.ModulesByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("%w: module %s", ErrNotFound, code)
	}
	iters, err := e.store.ModuleIterations(ctx, mods[0].ID)
	if err != nil {
		return nil, err
	}
	if iters == nil {
		iters = []store.ModuleIteration{}
	}
	return &ModuleInfo{Module: mods[0], Iterations: iters}, nil
}

// SearchModules matches modules by code or name.
func (e *engine) SearchModules(ctx context.Context, term string) ([]store.ModuleSummary, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	return e.store.SearchModules(ctx, term)
}

// Imports lists the import audit.
func (e *engine) Imports(ctx context.Context) ([]store.Import, error) {
	if e.closed.Load() {
		return nil, ErrStoreClosed
	}
	return e.store.ListImports(ctx)
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.store.Close()
}

// wrapParseError maps parser failures onto the package sentinels. Context
// errors pass through unchanged.
func wrapParseError(err error) error {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
