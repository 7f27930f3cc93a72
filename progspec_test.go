//go:build cgo

package progspec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const g400Spec = `Programme Specification 2024-25
Department Computing
Faculty Faculty of Engineering

| Award |
| MEng Computing |
| BEng Computing |

Year 1 - FHEQ Level 4
| Code | Module Title | Core/Elective | Term | Credits |
| COMP40001 | Introduction to\nProgramming | Core | Autumn | 6.0 |
| COMP40002 | Discrete Mathematics | Core | Spring | 7.5 |
` + "\f" + `Year 2 - FHEQ Level 5
| Code | Module Title | Core/Elective | Term | Credits |
| COMP50001 | Algorithm Design | Elective | Autumn | |
`

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "catalog.db")
	cfg.IngestConcurrency = 2
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func writeSpec(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Parse / Ingest
// ---------------------------------------------------------------------------

func TestEngineParseDoesNotLoad(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	path := writeSpec(t, t.TempDir(), "G400-MEng-Computing-2024-25.txt", g400Spec)

	rec, rep, err := e.Parse(ctx, path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Programme.Code != "G400" || len(rec.ModulesByYear) != 2 || rep.Modules != 3 {
		t.Errorf("record = %+v, report = %+v", rec, rep)
	}

	courses, err := e.Courses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 0 {
		t.Errorf("Parse loaded %d courses", len(courses))
	}
}

func TestEngineIngest(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	path := writeSpec(t, t.TempDir(), "G400-MEng-Computing-2024-25.txt", g400Spec)

	res, err := e.Ingest(ctx, path)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Skipped || res.ImportID == "" || res.Load == nil || res.Load.Modules != 3 {
		t.Errorf("result = %+v", res)
	}

	courses, err := e.Courses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(courses) != 2 {
		t.Fatalf("courses = %+v, want 2", courses)
	}

	info, err := e.Module(ctx, "COMP40001")
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if info.Name != "Introduction to Programming" || len(info.Iterations) != 1 {
		t.Errorf("module = %+v", info)
	}
	if it := info.Iterations[0]; it.AcademicYear != 2024 || it.YearOfStudy != 1 || it.FHEQLevel != 4 {
		t.Errorf("iteration = %+v", it)
	}

	if _, err := e.Module(ctx, "NOPE40001"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Module(missing) error = %v, want ErrNotFound", err)
	}

	mods, err := e.SearchModules(ctx, "algorithm")
	if err != nil || len(mods) != 1 {
		t.Errorf("SearchModules = %+v, %v", mods, err)
	}
}

func TestEngineIngestSkipsUnchanged(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	path := writeSpec(t, t.TempDir(), "G400-MEng-Computing-2024-25.txt", g400Spec)

	first, err := e.Ingest(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Ingest(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Skipped || second.ImportID != first.ImportID {
		t.Errorf("second ingest = %+v, want skipped with import %s", second, first.ImportID)
	}

	forced, err := e.Ingest(ctx, path, WithForceReparse())
	if err != nil {
		t.Fatal(err)
	}
	if forced.Skipped || forced.ImportID == first.ImportID {
		t.Errorf("forced ingest = %+v", forced)
	}

	imports, err := e.Imports(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(imports) != 2 {
		t.Errorf("imports = %d, want 2", len(imports))
	}
}

func TestEngineIngestErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"unsupported format", "G400-Computing-2024-25.docx", "x", ErrUnsupportedFormat},
		{"unreadable pdf", "G400-Computing-2024-25.pdf", "not a pdf", ErrParsingFailed},
		{"no academic year", "G400-Computing.txt", "Year 1 - FHEQ Level 4", ErrNotLoadable},
		{"no programme code", "Computing-2024-25.txt", "Year 1 - FHEQ Level 4", ErrNotLoadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSpec(t, dir, tt.file, tt.content)
			if _, err := e.Ingest(ctx, path); !errors.Is(err, tt.want) {
				t.Errorf("Ingest error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := e.Ingest(ctx, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEngineIngestAll(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	paths := []string{
		writeSpec(t, dir, "G400-MEng-Computing-2024-25.txt", g400Spec),
		writeSpec(t, dir, "G401-BEng-Computing-2024-25.txt",
			strings.ReplaceAll(g400Spec, "COMP5", "COMP6")),
		writeSpec(t, dir, "broken.docx", "x"),
	}
	results, err := e.IngestAll(ctx, paths)
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, r := range results[:2] {
		if r.Err != nil || r.Load == nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
	if !errors.Is(results[2].Err, ErrUnsupportedFormat) || results[2].Error == "" {
		t.Errorf("results[2] = %+v", results[2])
	}

	courses, _ := e.Courses(ctx)
	if len(courses) != 4 {
		t.Errorf("courses = %d, want 4", len(courses))
	}
}

func TestEngineIngestAllDuplicates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := writeSpec(t, dir, "G400-MEng-Computing-2024-25.txt", g400Spec)
	// Same bytes at another path, ingested concurrently with path.
	other := writeSpec(t, t.TempDir(), "G400-MEng-Computing-2024-25.txt", g400Spec)

	results, err := e.IngestAll(ctx, []string{path, path, other})
	if err != nil {
		t.Fatalf("IngestAll: %v", err)
	}
	if results[0].Err != nil || results[0].Skipped {
		t.Fatalf("results[0] = %+v", results[0])
	}
	if !results[1].Skipped || results[1].ImportID != results[0].ImportID {
		t.Errorf("repeated path = %+v, want skipped with import %s", results[1], results[0].ImportID)
	}

	loaded := 0
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("%s: %v", r.Path, r.Err)
		}
		if !r.Skipped {
			loaded++
		}
	}
	if loaded != 1 {
		t.Errorf("loaded = %d, want 1", loaded)
	}

	imports, _ := e.Imports(ctx)
	if len(imports) != 1 {
		t.Errorf("imports = %d, want 1", len(imports))
	}
}

func TestEngineIngestAllCancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := writeSpec(t, t.TempDir(), "G400-MEng-Computing-2024-25.txt", g400Spec)
	results, err := e.IngestAll(ctx, []string{path})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("IngestAll error = %v, want context.Canceled", err)
	}
	if len(results) != 1 || results[0].Err == nil {
		t.Errorf("results = %+v", results)
	}
}

func TestEngineClose(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := e.Courses(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Courses after Close = %v, want ErrStoreClosed", err)
	}
}
