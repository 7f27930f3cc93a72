package store

// schemaSQL is the DDL for the module catalog.
const schemaSQL = `
-- Departments, identified by name
CREATE TABLE IF NOT EXISTS departments (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    faculty TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One course per award level of a programme
CREATE TABLE IF NOT EXISTS courses (
    id INTEGER PRIMARY KEY,
    department_id INTEGER REFERENCES departments(id) ON DELETE SET NULL,
    programme_code TEXT NOT NULL,
    level TEXT NOT NULL,
    title TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(programme_code, level)
);

-- Modules, identified by code
CREATE TABLE IF NOT EXISTS modules (
    id INTEGER PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- A module as offered in one academic year
CREATE TABLE IF NOT EXISTS module_iterations (
    id INTEGER PRIMARY KEY,
    module_id INTEGER NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
    academic_year_start_year INTEGER NOT NULL,
    year_of_study INTEGER NOT NULL,
    fheq_level INTEGER NOT NULL,
    term TEXT,
    module_type TEXT,
    credits REAL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(module_id, academic_year_start_year)
);

-- Courses a module iteration belongs to
CREATE TABLE IF NOT EXISTS module_iterations_courses_links (
    module_iteration_id INTEGER NOT NULL REFERENCES module_iterations(id) ON DELETE CASCADE,
    course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    PRIMARY KEY (module_iteration_id, course_id)
);

-- Audit of loaded documents with hash-based change detection
CREATE TABLE IF NOT EXISTS imports (
    id TEXT PRIMARY KEY,
    filename TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    programme_code TEXT NOT NULL,
    academic_year INTEGER NOT NULL,
    module_count INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_courses_department ON courses(department_id);
CREATE INDEX IF NOT EXISTS idx_iterations_module ON module_iterations(module_id);
CREATE INDEX IF NOT EXISTS idx_iterations_year ON module_iterations(academic_year_start_year);
CREATE INDEX IF NOT EXISTS idx_links_course ON module_iterations_courses_links(course_id);
CREATE INDEX IF NOT EXISTS idx_imports_hash ON imports(content_hash);
`
