package parser

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// Parser turns Programme Specification files into Records.
type Parser struct {
	registry *Registry
	logger   *slog.Logger
}

// New returns a Parser over the built-in sources. A nil logger uses
// slog.Default().
func New(logger *slog.Logger) *Parser {
	return NewWithRegistry(NewRegistry(), logger)
}

// NewWithRegistry returns a Parser that opens files through reg.
func NewWithRegistry(reg *Registry, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{registry: reg, logger: logger}
}

// Parse opens path, extracts its record and closes the document on every
// path out. The file name (not the directory) feeds the filename fields.
func (p *Parser) Parse(ctx context.Context, path string) (*Record, *Report, error) {
	doc, err := p.registry.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer doc.Close()

	return Extract(ctx, filepath.Base(path), doc, p.logger)
}

// Extract runs the page-ordered pipeline over an opened document. All state
// lives in this call.
func Extract(ctx context.Context, name string, doc Document, logger *slog.Logger) (*Record, *Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fi := ParseFilename(name)
	var (
		textYear string
		dept     Department
		courses  = []Course{}
		buckets  = Buckets{}
		yc       YearContext
		report   = &Report{Pages: doc.NumPages()}
	)

	for n := 1; n <= doc.NumPages(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		text, tables, offsets, err := readPage(doc, n)
		if err != nil {
			logger.Warn("parser: page extraction failed", "file", name, "page", n, "error", err)
			report.FailedPages = append(report.FailedPages, n)
			continue
		}

		if textYear == "" {
			textYear = RecognizeAcademicYear(text)
		}
		if n == 1 {
			dept = Department{Name: RecognizeDepartment(text), Faculty: RecognizeFaculty(text)}
		}

		for _, ev := range pageEvents(text, tables, offsets) {
			if ev.header != nil {
				next, conflict := yc.Enter(*ev.header, buckets)
				yc = next
				if conflict != nil {
					conflict.Page = n
					report.LevelConflicts = append(report.LevelConflicts, *conflict)
					logger.Warn("parser: conflicting FHEQ level for repeated year header",
						"file", name, "page", n, "year", conflict.Year,
						"recorded", conflict.Recorded, "seen", conflict.Seen)
				}
				continue
			}

			switch ClassifyTable(ev.table) {
			case TableModule:
				report.ModuleTables++
				mods := buildModules(ev.table, n, report, logger)
				if len(mods) == 0 {
					continue
				}
				if yc.Attribute(mods, buckets) {
					report.Modules += len(mods)
				} else {
					report.Orphans += len(mods)
					logger.Debug("parser: module rows before any year header discarded",
						"file", name, "page", n, "rows", len(mods))
				}
			case TableAward:
				report.AwardTables++
				courses = append(courses, awardCourses(ev.table)...)
			default:
				report.IgnoredTables++
			}
		}
	}

	rec := &Record{
		Programme: Programme{
			Code:         fi.Code,
			Title:        fi.Title,
			AcademicYear: fi.AcademicYear,
		},
		Department:    dept,
		Courses:       courses,
		ModulesByYear: make(map[string]YearBucket, len(buckets)),
	}
	if textYear != "" {
		rec.Programme.AcademicYear = textYear
	}
	for key, b := range buckets {
		rec.ModulesByYear[key] = *b
	}

	logger.Debug("parser: document parsed", "file", name, "pages", report.Pages,
		"years", len(rec.ModulesByYear), "modules", report.Modules,
		"rejected", len(report.Rejected), "orphans", report.Orphans)

	return rec, report, nil
}

// readPage returns a page's text and tables, plus table offsets when the
// page can report them.
func readPage(doc Document, n int) (string, []Table, []int, error) {
	page, err := doc.Page(n)
	if err != nil {
		return "", nil, nil, err
	}
	text, err := page.Text()
	if err != nil {
		return "", nil, nil, err
	}
	tables, err := page.Tables()
	if err != nil {
		return "", nil, nil, err
	}
	var offsets []int
	if loc, ok := page.(TableLocator); ok {
		offsets = loc.TableOffsets()
	}
	return text, tables, offsets, nil
}

func buildModules(t Table, page int, report *Report, logger *slog.Logger) []ModuleRecord {
	cols := locateModuleColumns(t[0])
	var mods []ModuleRecord
	for i, row := range t[1:] {
		if blankRow(row) {
			continue
		}
		out := BuildModule(row, cols)
		if !out.Accepted() {
			rej := *out.Rejected
			rej.Page = page
			rej.Row = i + 1
			report.Rejected = append(report.Rejected, rej)
			logger.Debug("parser: row rejected", "page", page, "row", rej.Row,
				"code", rej.Code, "reason", rej.Reason)
			continue
		}
		mods = append(mods, *out.Record)
	}
	return mods
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// pageEvent is either a year header or a table, positioned in page text.
type pageEvent struct {
	offset int
	header *YearHeader
	table  Table
}

// pageEvents interleaves year headers and tables by their position in the
// page text so that each table is attributed to the header above it. Offsets
// reported by the page are used as given; otherwise tables are anchored by
// searching the text.
func pageEvents(text string, tables []Table, offsets []int) []pageEvent {
	var events []pageEvent
	for _, h := range RecognizeYearHeaders(text) {
		events = append(events, pageEvent{offset: h.Offset, header: &h})
	}
	if len(offsets) != len(tables) {
		offsets = anchorTables(text, tables)
	}
	for i, off := range offsets {
		events = append(events, pageEvent{offset: off, table: tables[i]})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].offset != events[j].offset {
			return events[i].offset < events[j].offset
		}
		return events[i].header != nil && events[j].header == nil
	})
	return events
}

// minAnchorLength keeps very short cells ("1", "A") from anchoring tables to
// unrelated text.
const minAnchorLength = 3

// anchorTables finds each table's position in the page text by searching
// forward for its anchor cell. A table that cannot be found takes the
// position of the next table that can, or the end of the page.
func anchorTables(text string, tables []Table) []int {
	offsets := make([]int, len(tables))
	cursor := 0
	for i, t := range tables {
		offsets[i] = -1
		key := anchorKey(t)
		if len(key) < minAnchorLength {
			continue
		}
		if j := strings.Index(text[cursor:], key); j >= 0 {
			offsets[i] = cursor + j
			cursor += j + len(key)
		}
	}
	next := len(text)
	for i := len(offsets) - 1; i >= 0; i-- {
		if offsets[i] < 0 {
			offsets[i] = next
		} else {
			next = offsets[i]
		}
	}
	return offsets
}

// anchorKey picks the text most likely to be unique to the table: the code
// cell of the first module row, or the first non-empty cell of the first data
// row for other tables. Only the first line of a wrapped cell is used.
func anchorKey(t Table) string {
	if len(t) < 2 {
		return ""
	}
	col := -1
	if ClassifyTable(t) == TableModule {
		col = locateModuleColumns(t[0]).code
	}
	for _, row := range t[1:] {
		if col >= 0 {
			if k := firstLine(cellAt(row, col)); k != "" {
				return k
			}
			continue
		}
		for _, c := range row {
			if k := firstLine(c); k != "" {
				return k
			}
		}
	}
	return ""
}

func firstLine(cell string) string {
	line, _, _ := strings.Cut(cell, "\n")
	return strings.TrimSpace(line)
}
