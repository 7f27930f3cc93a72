package parser

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// TextDocument is a plain-text rendering of a Programme Specification, used
// for fixtures and for documents already converted from PDF. Pages are
// separated by form feeds. Lines starting with "|" are table rows; a run of
// them is one table whose first row is the header. A literal `\n` inside a
// cell is a line break within the cell.
type TextDocument struct {
	pages []textPage
}

type textPage struct {
	text    string
	tables  []Table
	offsets []int // start of each table in text
}

func (p textPage) Text() (string, error)    { return p.text, nil }
func (p textPage) Tables() ([]Table, error) { return p.tables, nil }
func (p textPage) TableOffsets() []int      { return p.offsets }

// OpenText reads a text fixture from disk.
func OpenText(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading text file: %v", ErrDocumentUnreadable, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not UTF-8 text", ErrDocumentUnreadable, path)
	}
	return ParseText(string(data)), nil
}

// ParseText splits text into pages and tables.
func ParseText(content string) *TextDocument {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	doc := &TextDocument{}
	for _, raw := range strings.Split(content, "\f") {
		doc.pages = append(doc.pages, parseTextPage(raw))
	}
	return doc
}

func parseTextPage(raw string) textPage {
	var (
		page  textPage
		lines []string
		table Table
		next  int // offset the next line will start at
	)
	flush := func() {
		if len(table) > 0 {
			page.tables = append(page.tables, table)
			table = nil
		}
	}
	addLine := func(line string) {
		lines = append(lines, line)
		next += len(line) + 1
	}
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			flush()
			addLine(line)
			continue
		}
		cells := splitTableRow(trimmed)
		if isSeparatorRow(cells) {
			continue
		}
		if len(table) == 0 {
			page.offsets = append(page.offsets, next)
		}
		table = append(table, cells)
		addLine(strings.Join(cells, " "))
	}
	flush()
	page.text = strings.Join(lines, "\n")
	return page
}

func splitTableRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.ReplaceAll(strings.TrimSpace(p), `\n`, "\n")
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return len(cells) > 0
}

func (d *TextDocument) NumPages() int { return len(d.pages) }

func (d *TextDocument) Page(n int) (Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	return d.pages[n-1], nil
}

func (d *TextDocument) Close() error { return nil }
