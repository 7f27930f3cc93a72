package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrMissingAcademicYear is returned when a record without an academic
	// year is loaded. Module iterations are keyed by it.
	ErrMissingAcademicYear = errors.New("store: record has no academic year")

	// ErrMissingProgrammeCode is returned when a record without a programme
	// code is loaded. Courses are keyed by it.
	ErrMissingProgrammeCode = errors.New("store: record has no programme code")

	// ErrAlreadyImported is matched by *AlreadyImportedError.
	ErrAlreadyImported = errors.New("store: document already imported")
)

// Department represents a row in the departments table.
type Department struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Faculty *string `json:"faculty"`
}

// Course represents a row in the courses table.
type Course struct {
	ID            int64  `json:"id"`
	DepartmentID  *int64 `json:"department_id,omitempty"`
	ProgrammeCode string `json:"programme_code"`
	Level         string `json:"level"`
	Title         string `json:"title"`
}

// Module represents a row in the modules table.
type Module struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// ModuleSummary is a search hit: a module and the courses it is linked to in
// the catalog's most recent academic year. CurrentCourses is empty when the
// module was not offered that year.
type ModuleSummary struct {
	Module
	CurrentCourses []Course `json:"current_courses"`
}

// ModuleIteration represents a row in the module_iterations table together
// with the courses it is linked to.
type ModuleIteration struct {
	ID           int64    `json:"id"`
	ModuleID     int64    `json:"module_id"`
	AcademicYear int      `json:"academic_year_start_year"`
	YearOfStudy  int      `json:"year_of_study"`
	FHEQLevel    int      `json:"fheq_level"`
	Term         string   `json:"term"`
	Type         string   `json:"type"`
	Credits      *float64 `json:"credits"`
	Courses      []Course `json:"courses"`
}

// Import represents a row in the imports table.
type Import struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	ContentHash   string `json:"content_hash"`
	ProgrammeCode string `json:"programme_code"`
	AcademicYear  int    `json:"academic_year"`
	ModuleCount   int    `json:"module_count"`
	CreatedAt     string `json:"created_at"`
}

// Store wraps the SQLite database holding the module catalog.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Catalog queries ---

// ListCourses returns all courses ordered by title.
func (s *Store) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, department_id, programme_code, level, title
		FROM courses ORDER BY title, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCourses(rows)
}

// ModulesByCode returns the modules with exactly this code (zero or one).
func (s *Store) ModulesByCode(ctx context.Context, code string) ([]Module, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, code, name FROM modules WHERE code = ?", code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanModules(rows)
}

// SearchModules matches term case-insensitively against module codes and
// names. "*" returns every module. Each hit carries its courses in the latest
// academic year held in the catalog.
func (s *Store) SearchModules(ctx context.Context, term string) ([]ModuleSummary, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if term == "*" {
		rows, err = s.db.QueryContext(ctx, "SELECT id, code, name FROM modules ORDER BY code")
	} else {
		pattern := "%" + escapeLike(term) + "%"
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, code, name FROM modules
			WHERE code LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'
			ORDER BY code
		`, pattern, pattern)
	}
	if err != nil {
		return nil, err
	}
	mods, err := scanModules(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	var current sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(academic_year_start_year) FROM module_iterations",
	).Scan(&current); err != nil {
		return nil, fmt.Errorf("reading current academic year: %w", err)
	}

	out := make([]ModuleSummary, len(mods))
	for i, m := range mods {
		out[i] = ModuleSummary{Module: m, CurrentCourses: []Course{}}
		if !current.Valid {
			continue
		}
		var iterID int64
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM module_iterations WHERE module_id = ? AND academic_year_start_year = ?",
			m.ID, current.Int64,
		).Scan(&iterID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if out[i].CurrentCourses, err = s.coursesForIteration(ctx, iterID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ModuleIterations returns every iteration of a module, oldest academic year
// first, each with its linked courses.
func (s *Store) ModuleIterations(ctx context.Context, moduleID int64) ([]ModuleIteration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module_id, academic_year_start_year, year_of_study, fheq_level,
			COALESCE(term, ''), COALESCE(module_type, ''), credits
		FROM module_iterations WHERE module_id = ?
		ORDER BY academic_year_start_year
	`, moduleID)
	if err != nil {
		return nil, err
	}

	var iters []ModuleIteration
	for rows.Next() {
		var it ModuleIteration
		var credits sql.NullFloat64
		if err := rows.Scan(&it.ID, &it.ModuleID, &it.AcademicYear, &it.YearOfStudy,
			&it.FHEQLevel, &it.Term, &it.Type, &credits); err != nil {
			rows.Close()
			return nil, err
		}
		if credits.Valid {
			it.Credits = &credits.Float64
		}
		iters = append(iters, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range iters {
		courses, err := s.coursesForIteration(ctx, iters[i].ID)
		if err != nil {
			return nil, err
		}
		iters[i].Courses = courses
	}
	return iters, nil
}

func (s *Store) coursesForIteration(ctx context.Context, iterationID int64) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.department_id, c.programme_code, c.level, c.title
		FROM courses c
		INNER JOIN module_iterations_courses_links l ON c.id = l.course_id
		WHERE l.module_iteration_id = ?
		ORDER BY c.title
	`, iterationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courses, err := scanCourses(rows)
	if courses == nil {
		courses = []Course{}
	}
	return courses, err
}

// GetDepartment retrieves a department by name.
func (s *Store) GetDepartment(ctx context.Context, name string) (*Department, error) {
	d := &Department{}
	var faculty sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, faculty FROM departments WHERE name = ?", name,
	).Scan(&d.ID, &d.Name, &faculty)
	if err != nil {
		return nil, err
	}
	if faculty.Valid {
		d.Faculty = &faculty.String
	}
	return d, nil
}

// --- Import audit ---

// GetImportByHash returns the most recent import of a document with this
// content hash, or sql.ErrNoRows.
func (s *Store) GetImportByHash(ctx context.Context, hash string) (*Import, error) {
	im := &Import{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, content_hash, programme_code, academic_year, module_count, created_at
		FROM imports WHERE content_hash = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, hash).Scan(&im.ID, &im.Filename, &im.ContentHash, &im.ProgrammeCode,
		&im.AcademicYear, &im.ModuleCount, &im.CreatedAt)
	if err != nil {
		return nil, err
	}
	return im, nil
}

// ListImports returns all imports, newest first.
func (s *Store) ListImports(ctx context.Context) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, content_hash, programme_code, academic_year, module_count, created_at
		FROM imports ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var im Import
		if err := rows.Scan(&im.ID, &im.Filename, &im.ContentHash, &im.ProgrammeCode,
			&im.AcademicYear, &im.ModuleCount, &im.CreatedAt); err != nil {
			return nil, err
		}
		imports = append(imports, im)
	}
	return imports, rows.Err()
}

// CatalogStats holds row counts for the catalog tables.
type CatalogStats struct {
	Departments int `json:"departments"`
	Courses     int `json:"courses"`
	Modules     int `json:"modules"`
	Iterations  int `json:"module_iterations"`
	Imports     int `json:"imports"`
}

// Stats returns counts of departments, courses, modules, iterations and imports.
func (s *Store) Stats(ctx context.Context) (*CatalogStats, error) {
	stats := &CatalogStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM departments", &stats.Departments},
		{"SELECT COUNT(*) FROM courses", &stats.Courses},
		{"SELECT COUNT(*) FROM modules", &stats.Modules},
		{"SELECT COUNT(*) FROM module_iterations", &stats.Iterations},
		{"SELECT COUNT(*) FROM imports", &stats.Imports},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func scanCourses(rows *sql.Rows) ([]Course, error) {
	var courses []Course
	for rows.Next() {
		var c Course
		var dept sql.NullInt64
		if err := rows.Scan(&c.ID, &dept, &c.ProgrammeCode, &c.Level, &c.Title); err != nil {
			return nil, err
		}
		if dept.Valid {
			c.DepartmentID = &dept.Int64
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func scanModules(rows *sql.Rows) ([]Module, error) {
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Code, &m.Name); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
