package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/brunobiangulo/progspec/parser"
)

// ImportMeta describes the document a record came from. With SkipImported
// set, Load writes nothing when an import with the same ContentHash already
// exists and returns an *AlreadyImportedError.
type ImportMeta struct {
	Filename     string
	ContentHash  string
	SkipImported bool
}

// AlreadyImportedError reports that a document's content hash was imported
// before. It matches ErrAlreadyImported under errors.Is.
type AlreadyImportedError struct {
	ImportID string
}

func (e *AlreadyImportedError) Error() string {
	return "store: document already imported as " + e.ImportID
}

func (e *AlreadyImportedError) Is(target error) bool { return target == ErrAlreadyImported }

// LoadResult summarises one Load.
type LoadResult struct {
	ImportID     string `json:"import_id"`
	DepartmentID *int64 `json:"department_id,omitempty"`
	Courses      int    `json:"courses"`
	Modules      int    `json:"modules"`
	Iterations   int    `json:"module_iterations"`
}

// Load writes a parsed record into the catalog in one transaction.
//
// Departments are matched by name, courses by (programme code, level),
// modules by code and iterations by (module, academic year). Loading the same
// record twice leaves the catalog unchanged apart from a second imports row.
func (s *Store) Load(ctx context.Context, rec *parser.Record, meta ImportMeta) (*LoadResult, error) {
	if rec == nil {
		return nil, fmt.Errorf("store: nil record")
	}
	code := strings.TrimSpace(rec.Programme.Code)
	if code == "" {
		return nil, ErrMissingProgrammeCode
	}
	if rec.Programme.AcademicYear == "" {
		return nil, ErrMissingAcademicYear
	}
	year, err := strconv.Atoi(rec.Programme.AcademicYear)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a year", ErrMissingAcademicYear, rec.Programme.AcademicYear)
	}

	res := &LoadResult{ImportID: uuid.NewString()}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		// The transaction holds the write lock from BEGIN, so this check and
		// the imports insert below cannot interleave with another Load.
		if meta.SkipImported && meta.ContentHash != "" {
			var existing string
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM imports WHERE content_hash = ?
				ORDER BY created_at DESC, rowid DESC LIMIT 1
			`, meta.ContentHash).Scan(&existing)
			switch {
			case err == nil:
				return &AlreadyImportedError{ImportID: existing}
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("checking imports: %w", err)
			}
		}

		if name := strings.TrimSpace(rec.Department.Name); name != "" {
			id, err := upsertDepartment(ctx, tx, name, rec.Department.Faculty)
			if err != nil {
				return fmt.Errorf("upserting department %q: %w", name, err)
			}
			res.DepartmentID = &id
		}

		var courseIDs []int64
		seen := make(map[string]bool)
		for _, c := range rec.Courses {
			if seen[c.Level] {
				continue
			}
			seen[c.Level] = true
			title := strings.TrimSpace(c.Level + " " + rec.Programme.Title)
			id, err := upsertCourse(ctx, tx, res.DepartmentID, code, c.Level, title)
			if err != nil {
				return fmt.Errorf("upserting course %s %s: %w", code, c.Level, err)
			}
			courseIDs = append(courseIDs, id)
		}
		res.Courses = len(courseIDs)

		for _, b := range sortedBuckets(rec.ModulesByYear) {
			for _, m := range b.Modules {
				moduleID, err := upsertModule(ctx, tx, m.Code, m.Title)
				if err != nil {
					return fmt.Errorf("upserting module %s: %w", m.Code, err)
				}
				iterID, err := upsertIteration(ctx, tx, moduleID, year, b, m)
				if err != nil {
					return fmt.Errorf("upserting iteration %s/%d: %w", m.Code, year, err)
				}
				for _, cid := range courseIDs {
					if _, err := tx.ExecContext(ctx, `
						INSERT OR IGNORE INTO module_iterations_courses_links (module_iteration_id, course_id)
						VALUES (?, ?)
					`, iterID, cid); err != nil {
						return fmt.Errorf("linking %s to course %d: %w", m.Code, cid, err)
					}
				}
				res.Modules++
				res.Iterations++
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO imports (id, filename, content_hash, programme_code, academic_year, module_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, res.ImportID, meta.Filename, meta.ContentHash, code, year, res.Modules)
		if err != nil {
			return fmt.Errorf("recording import: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func upsertDepartment(ctx context.Context, tx *sql.Tx, name string, faculty *string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO departments (name, faculty) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			faculty = COALESCE(excluded.faculty, departments.faculty),
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, name, faculty).Scan(&id)
	return id, err
}

func upsertCourse(ctx context.Context, tx *sql.Tx, deptID *int64, code, level, title string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO courses (department_id, programme_code, level, title) VALUES (?, ?, ?, ?)
		ON CONFLICT(programme_code, level) DO UPDATE SET
			department_id = COALESCE(excluded.department_id, courses.department_id),
			title = excluded.title,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, deptID, code, level, title).Scan(&id)
	return id, err
}

func upsertModule(ctx context.Context, tx *sql.Tx, code, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO modules (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE modules.name END,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, code, name).Scan(&id)
	return id, err
}

func upsertIteration(ctx context.Context, tx *sql.Tx, moduleID int64, year int, b parser.YearBucket, m parser.ModuleRecord) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO module_iterations
			(module_id, academic_year_start_year, year_of_study, fheq_level, term, module_type, credits)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(module_id, academic_year_start_year) DO UPDATE SET
			year_of_study = excluded.year_of_study,
			fheq_level = excluded.fheq_level,
			term = excluded.term,
			module_type = excluded.module_type,
			credits = excluded.credits,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, moduleID, year, b.Year, b.FHEQLevel, m.Term, m.Type, m.Credits).Scan(&id)
	return id, err
}

// sortedBuckets orders buckets by year of study so loads are deterministic.
func sortedBuckets(m map[string]parser.YearBucket) []parser.YearBucket {
	out := make([]parser.YearBucket, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}
