// Package export renders extracted records for people who live in
// spreadsheets.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/progspec/parser"
)

const (
	programmeSheet = "Programme"
	modulesSheet   = "Modules"
)

var moduleHeader = []any{"Year", "FHEQ Level", "Code", "Title", "Type", "Term", "Credits"}

// WriteXLSX writes rec as a workbook with a Programme sheet of key/value rows
// and a Modules sheet with one row per module, ordered by year of study and
// then by position in the document.
func WriteXLSX(rec *parser.Record, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with "Sheet1".
	if err := f.SetSheetName("Sheet1", programmeSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(modulesSheet); err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}

	if err := writeRows(f, programmeSheet, programmeRows(rec)); err != nil {
		return err
	}
	if err := writeRows(f, modulesSheet, moduleRows(rec)); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(moduleHeader), 1)
	if err := f.SetCellStyle(modulesSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetPanes(modulesSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func programmeRows(rec *parser.Record) [][]any {
	faculty := ""
	if rec.Department.Faculty != nil {
		faculty = *rec.Department.Faculty
	}
	levels := make([]string, len(rec.Courses))
	for i, c := range rec.Courses {
		levels[i] = c.Level
	}
	return [][]any{
		{"Programme code", rec.Programme.Code},
		{"Programme title", rec.Programme.Title},
		{"Academic year", rec.Programme.AcademicYear},
		{"Department", rec.Department.Name},
		{"Faculty", faculty},
		{"Courses", strings.Join(levels, ", ")},
	}
}

func moduleRows(rec *parser.Record) [][]any {
	buckets := make([]parser.YearBucket, 0, len(rec.ModulesByYear))
	for _, b := range rec.ModulesByYear {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Year < buckets[j].Year })

	rows := [][]any{moduleHeader}
	for _, b := range buckets {
		for _, m := range b.Modules {
			var credits any
			if m.Credits != nil {
				credits = *m.Credits
			}
			rows = append(rows, []any{b.Year, b.FHEQLevel, m.Code, m.Title, m.Type, m.Term, credits})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
