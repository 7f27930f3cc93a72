//go:build cgo

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/brunobiangulo/progspec/parser"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func credits(v float64) *float64 { return &v }

func sampleRecord() *parser.Record {
	faculty := "Faculty of Engineering"
	return &parser.Record{
		Programme:  parser.Programme{Code: "G400", Title: "Computing", AcademicYear: "2024"},
		Department: parser.Department{Name: "Computing", Faculty: &faculty},
		Courses:    []parser.Course{{Level: "MEng"}, {Level: "BEng"}},
		ModulesByYear: map[string]parser.YearBucket{
			"year_1": {Year: 1, FHEQLevel: 4, Modules: []parser.ModuleRecord{
				{Code: "COMP40001", Title: "Introduction to Programming", Type: "Core", Term: "Autumn", Credits: credits(6)},
				{Code: "COMP40002", Title: "Discrete Mathematics", Type: "Core", Term: "Spring"},
			}},
			"year_2": {Year: 2, FHEQLevel: 5, Modules: []parser.ModuleRecord{
				{Code: "COMP50001", Title: "Algorithm Design", Type: "Elective", Term: "Autumn", Credits: credits(7.5)},
			}},
		},
	}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("schema version = %d, want %d", v, len(migrations))
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_version").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != len(migrations) {
		t.Errorf("schema_version rows = %d, want %d", n, len(migrations))
	}
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "G400-MEng-Computing-2024-25.pdf", ContentHash: "h1"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.ImportID == "" || res.DepartmentID == nil {
		t.Errorf("result = %+v", res)
	}
	if res.Courses != 2 || res.Modules != 3 || res.Iterations != 3 {
		t.Errorf("result counts = %+v", res)
	}

	dept, err := s.GetDepartment(ctx, "Computing")
	if err != nil {
		t.Fatalf("GetDepartment: %v", err)
	}
	if dept.Faculty == nil || *dept.Faculty != "Faculty of Engineering" {
		t.Errorf("faculty = %v", dept.Faculty)
	}

	courses, err := s.ListCourses(ctx)
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(courses) != 2 || courses[0].Title != "BEng Computing" || courses[1].Title != "MEng Computing" {
		t.Errorf("courses = %+v", courses)
	}
	if courses[0].DepartmentID == nil || *courses[0].DepartmentID != dept.ID {
		t.Errorf("course department = %v, want %d", courses[0].DepartmentID, dept.ID)
	}

	mods, err := s.ModulesByCode(ctx, "COMP40001")
	if err != nil || len(mods) != 1 {
		t.Fatalf("ModulesByCode = %+v, %v", mods, err)
	}
	if mods[0].Name != "Introduction to Programming" {
		t.Errorf("name = %q", mods[0].Name)
	}

	iters, err := s.ModuleIterations(ctx, mods[0].ID)
	if err != nil {
		t.Fatalf("ModuleIterations: %v", err)
	}
	if len(iters) != 1 {
		t.Fatalf("iterations = %d, want 1", len(iters))
	}
	it := iters[0]
	if it.AcademicYear != 2024 || it.YearOfStudy != 1 || it.FHEQLevel != 4 || it.Term != "Autumn" || it.Type != "Core" {
		t.Errorf("iteration = %+v", it)
	}
	if it.Credits == nil || *it.Credits != 6 {
		t.Errorf("credits = %v, want 6", it.Credits)
	}
	if len(it.Courses) != 2 {
		t.Errorf("linked courses = %d, want 2", len(it.Courses))
	}

	mods, _ = s.ModulesByCode(ctx, "COMP40002")
	iters, _ = s.ModuleIterations(ctx, mods[0].ID)
	if iters[0].Credits != nil {
		t.Errorf("COMP40002 credits = %v, want nil", *iters[0].Credits)
	}
}

func TestLoadTwiceUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "a.pdf", ContentHash: "h1"}); err != nil {
		t.Fatal(err)
	}
	rec := sampleRecord()
	rec.ModulesByYear["year_1"].Modules[0].Title = "Programming I"
	rec.Department.Faculty = nil
	if _, err := s.Load(ctx, rec, ImportMeta{Filename: "a.pdf", ContentHash: "h2"}); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := CatalogStats{Departments: 1, Courses: 2, Modules: 3, Iterations: 3, Imports: 2}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}

	mods, _ := s.ModulesByCode(ctx, "COMP40001")
	if mods[0].Name != "Programming I" {
		t.Errorf("name = %q, want updated title", mods[0].Name)
	}
	dept, _ := s.GetDepartment(ctx, "Computing")
	if dept.Faculty == nil {
		t.Error("faculty was cleared by a record without one")
	}
}

func TestLoadNewAcademicYearAddsIteration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "a.pdf", ContentHash: "h1"}); err != nil {
		t.Fatal(err)
	}
	rec := sampleRecord()
	rec.Programme.AcademicYear = "2025"
	if _, err := s.Load(ctx, rec, ImportMeta{Filename: "b.pdf", ContentHash: "h2"}); err != nil {
		t.Fatal(err)
	}

	mods, _ := s.ModulesByCode(ctx, "COMP50001")
	iters, err := s.ModuleIterations(ctx, mods[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(iters) != 2 || iters[0].AcademicYear != 2024 || iters[1].AcademicYear != 2025 {
		t.Errorf("iterations = %+v", iters)
	}
}

func TestLoadRequiresKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*parser.Record)
		want   error
	}{
		{"no academic year", func(r *parser.Record) { r.Programme.AcademicYear = "" }, ErrMissingAcademicYear},
		{"bad academic year", func(r *parser.Record) { r.Programme.AcademicYear = "20xx" }, ErrMissingAcademicYear},
		{"no programme code", func(r *parser.Record) { r.Programme.Code = " " }, ErrMissingProgrammeCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sampleRecord()
			tt.mutate(rec)
			if _, err := s.Load(ctx, rec, ImportMeta{}); !errors.Is(err, tt.want) {
				t.Errorf("Load error = %v, want %v", err, tt.want)
			}
		})
	}

	stats, _ := s.Stats(ctx)
	if *stats != (CatalogStats{}) {
		t.Errorf("rejected loads wrote rows: %+v", *stats)
	}
}

func TestLoadWithoutDepartmentOrCourses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	rec.Department = parser.Department{}
	rec.Courses = []parser.Course{}
	res, err := s.Load(ctx, rec, ImportMeta{Filename: "x.pdf", ContentHash: "h"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.DepartmentID != nil || res.Courses != 0 || res.Modules != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestLoadRollsBackOnCancel(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx, sampleRecord(), ImportMeta{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Modules != 0 || stats.Imports != 0 {
		t.Errorf("stats after cancelled load = %+v", *stats)
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestSearchModules(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "a.pdf", ContentHash: "h1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		term string
		want int
	}{
		{"*", 3},
		{"comp4", 2},
		{"algorithm", 1},
		{"%", 0},
		{"nothing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got, err := s.SearchModules(ctx, tt.term)
			if err != nil {
				t.Fatalf("SearchModules: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("SearchModules(%q) = %d results, want %d", tt.term, len(got), tt.want)
			}
		})
	}
}

func TestLoadSkipImported(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meta := ImportMeta{Filename: "a.pdf", ContentHash: "h1", SkipImported: true}

	first, err := s.Load(ctx, sampleRecord(), meta)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Load(ctx, sampleRecord(), meta)
	var dup *AlreadyImportedError
	if !errors.As(err, &dup) || !errors.Is(err, ErrAlreadyImported) {
		t.Fatalf("second Load error = %v, want AlreadyImportedError", err)
	}
	if dup.ImportID != first.ImportID {
		t.Errorf("ImportID = %s, want %s", dup.ImportID, first.ImportID)
	}

	// Without SkipImported the same hash loads again.
	meta.SkipImported = false
	if _, err := s.Load(ctx, sampleRecord(), meta); err != nil {
		t.Fatalf("forced Load: %v", err)
	}
	imports, _ := s.ListImports(ctx)
	if len(imports) != 2 {
		t.Errorf("imports = %d, want 2", len(imports))
	}
}

func TestSearchModulesCurrentCourses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if hits, err := s.SearchModules(ctx, "*"); err != nil || len(hits) != 0 {
		t.Fatalf("empty catalog = %+v, %v", hits, err)
	}

	if _, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "a.pdf", ContentHash: "h1"}); err != nil {
		t.Fatal(err)
	}
	// 2025 drops COMP40002.
	rec := sampleRecord()
	rec.Programme.AcademicYear = "2025"
	y1 := rec.ModulesByYear["year_1"]
	y1.Modules = y1.Modules[:1]
	rec.ModulesByYear["year_1"] = y1
	if _, err := s.Load(ctx, rec, ImportMeta{Filename: "b.pdf", ContentHash: "h2"}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchModules(ctx, "comp4")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].Code != "COMP40001" || hits[1].Code != "COMP40002" {
		t.Fatalf("hits = %+v", hits)
	}
	if len(hits[0].CurrentCourses) != 2 {
		t.Errorf("COMP40001 current courses = %+v, want 2", hits[0].CurrentCourses)
	}
	if hits[1].CurrentCourses == nil || len(hits[1].CurrentCourses) != 0 {
		t.Errorf("COMP40002 current courses = %+v, want empty", hits[1].CurrentCourses)
	}
}

func TestModulesByCodeMissing(t *testing.T) {
	s := newTestStore(t)
	mods, err := s.ModulesByCode(context.Background(), "NOPE00000")
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 0 {
		t.Errorf("mods = %+v, want none", mods)
	}
}

func TestImports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetImportByHash(ctx, "h1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetImportByHash before load = %v, want sql.ErrNoRows", err)
	}

	first, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "a.pdf", ContentHash: "h1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, sampleRecord(), ImportMeta{Filename: "b.pdf", ContentHash: "h2"}); err != nil {
		t.Fatal(err)
	}

	im, err := s.GetImportByHash(ctx, "h1")
	if err != nil {
		t.Fatalf("GetImportByHash: %v", err)
	}
	if im.ID != first.ImportID || im.Filename != "a.pdf" || im.ProgrammeCode != "G400" ||
		im.AcademicYear != 2024 || im.ModuleCount != 3 {
		t.Errorf("import = %+v", im)
	}

	all, err := s.ListImports(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Filename != "b.pdf" {
		t.Errorf("imports = %+v, want b.pdf first", all)
	}
}
