package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookDocument reads a Programme Specification kept as a spreadsheet.
// Each sheet is a page; blocks of rows separated by blank rows are tables.
type WorkbookDocument struct {
	f      *excelize.File
	sheets []string
}

// OpenWorkbook opens an XLSX file.
func OpenWorkbook(path string) (Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening XLSX: %v", ErrDocumentUnreadable, err)
	}
	return &WorkbookDocument{f: f, sheets: f.GetSheetList()}, nil
}

func (d *WorkbookDocument) NumPages() int { return len(d.sheets) }

func (d *WorkbookDocument) Page(n int) (Page, error) {
	if n < 1 || n > len(d.sheets) {
		return nil, fmt.Errorf("sheet %d out of range", n)
	}
	rows, err := d.f.GetRows(d.sheets[n-1])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", d.sheets[n-1], err)
	}
	return sheetPage(rows), nil
}

func (d *WorkbookDocument) Close() error { return d.f.Close() }

// sheetPage renders rows as text lines and splits them into tables.
func sheetPage(rows [][]string) textPage {
	var (
		page  textPage
		lines []string
		table Table
		next  int // offset the next line will start at
	)
	for _, row := range rows {
		if blankRow(row) {
			if len(table) > 0 {
				page.tables = append(page.tables, table)
				table = nil
			}
			lines = append(lines, "")
			next++
			continue
		}
		line := strings.TrimSpace(strings.Join(row, " "))
		lines = append(lines, line)
		start := next
		next += len(line) + 1
		// A lone cell starts a table only when it is a recognised header;
		// otherwise it is prose.
		if len(table) == 0 && filledCells(row) < 2 && ClassifyTable(Table{row}) == TableOther {
			continue
		}
		if len(table) == 0 {
			page.offsets = append(page.offsets, start)
		}
		table = append(table, row)
	}
	if len(table) > 0 {
		page.tables = append(page.tables, table)
	}
	page.text = strings.Join(lines, "\n")
	return page
}

func filledCells(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
