package parser

import "errors"

var (
	// ErrDocumentUnreadable is returned when the source cannot be opened or
	// decoded as a document at all. No partial record is produced.
	ErrDocumentUnreadable = errors.New("parser: document unreadable")

	// ErrUnsupportedFormat is returned when no source is registered for a
	// file extension.
	ErrUnsupportedFormat = errors.New("parser: unsupported format")
)

// Record is the structured output of one Programme Specification.
type Record struct {
	Programme     Programme             `json:"programme"`
	Department    Department            `json:"department"`
	Courses       []Course              `json:"courses"`
	ModulesByYear map[string]YearBucket `json:"modules_by_year"`
}

// Programme identifies the degree programme the document describes.
type Programme struct {
	Code         string `json:"code"`
	Title        string `json:"title"`
	AcademicYear string `json:"academic_year"` // four-digit start year
}

// Department owns the programme. Faculty is nil when not stated.
type Department struct {
	Name    string  `json:"name"`
	Faculty *string `json:"faculty"`
}

// Course is one award granted by the programme (MEng, BEng, ...).
type Course struct {
	Level string `json:"level"`
}

// YearBucket holds the modules offered in one year of study.
type YearBucket struct {
	Year      int            `json:"year"`
	FHEQLevel int            `json:"fheq_level"`
	Modules   []ModuleRecord `json:"modules"`
}

// ModuleRecord is one accepted row of a module table.
type ModuleRecord struct {
	Code    string   `json:"code"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Term    string   `json:"term"`
	Credits *float64 `json:"credits"`
}

// Table is a list of rows of cell text. The first row is the header.
type Table [][]string

// Page is one page of a source document.
type Page interface {
	Text() (string, error)
	Tables() ([]Table, error)
}

// TableLocator is implemented by pages that know where each table starts in
// their Text(): one byte offset per table, in Tables() order. Pages without
// it have their tables located by searching the text.
type TableLocator interface {
	TableOffsets() []int
}

// Document is an opened source. Pages are numbered from 1.
type Document interface {
	NumPages() int
	Page(n int) (Page, error)
	Close() error
}

// Report describes what a parse saw and dropped. It is diagnostic output and
// never part of the Record.
type Report struct {
	Pages          int             `json:"pages"`
	FailedPages    []int           `json:"failed_pages,omitempty"`
	ModuleTables   int             `json:"module_tables"`
	AwardTables    int             `json:"award_tables"`
	IgnoredTables  int             `json:"ignored_tables"`
	Modules        int             `json:"modules"`
	Rejected       []Rejection     `json:"rejected,omitempty"`
	Orphans        int             `json:"orphans"`
	LevelConflicts []LevelConflict `json:"level_conflicts,omitempty"`
}

// LevelConflict records a repeated year header whose FHEQ level disagrees
// with the level fixed at the year's first sighting.
type LevelConflict struct {
	Page     int `json:"page"`
	Year     int `json:"year"`
	Recorded int `json:"recorded"`
	Seen     int `json:"seen"`
}
