package parser

import (
	"strings"
	"unicode"
)

// TableKind is the class a table is routed to.
type TableKind int

const (
	TableOther TableKind = iota
	TableModule
	TableAward
)

func (k TableKind) String() string {
	switch k {
	case TableModule:
		return "module"
	case TableAward:
		return "award"
	default:
		return "other"
	}
}

const moduleTitleHeader = "Module Title"

// ClassifyTable inspects the header row. A "Module Title" cell wins over an
// award header when both appear.
func ClassifyTable(t Table) TableKind {
	if len(t) == 0 {
		return TableOther
	}
	award := false
	for _, cell := range t[0] {
		h := normalizeHeader(cell)
		if h == moduleTitleHeader {
			return TableModule
		}
		lower := strings.ToLower(h)
		if strings.Contains(lower, "award") || strings.Contains(lower, "qualification") {
			award = true
		}
	}
	if award {
		return TableAward
	}
	return TableOther
}

// normalizeHeader collapses whitespace, including line breaks inserted by
// wrapped header cells.
func normalizeHeader(cell string) string {
	return strings.Join(strings.Fields(cell), " ")
}

// moduleColumns maps module table fields to column indexes. -1 means the
// column is absent.
type moduleColumns struct {
	code, title, kind, term, credits int
}

// positional layout of the canonical module table:
// Code | Module Title | Core/Elective | Term | Credits
var defaultModuleColumns = moduleColumns{code: 0, title: 1, kind: 2, term: 3, credits: 4}

func locateModuleColumns(header []string) moduleColumns {
	cols := moduleColumns{code: -1, title: -1, kind: -1, term: -1, credits: -1}
	for i, cell := range header {
		h := normalizeHeader(cell)
		lower := strings.ToLower(h)
		switch {
		case h == moduleTitleHeader:
			cols.title = i
		case cols.code < 0 && strings.Contains(lower, "code"):
			cols.code = i
		case cols.kind < 0 && (strings.Contains(lower, "core") || strings.Contains(lower, "elective") || lower == "type"):
			cols.kind = i
		case cols.term < 0 && strings.Contains(lower, "term"):
			cols.term = i
		case cols.credits < 0 && (strings.Contains(lower, "credit") || strings.Contains(lower, "ects")):
			cols.credits = i
		}
	}
	// Header cells that did not extract cleanly fall back to the canonical
	// position, unless that position is already claimed.
	claimed := map[int]bool{cols.code: true, cols.title: true, cols.kind: true, cols.term: true, cols.credits: true}
	fill := func(idx *int, pos int) {
		if *idx < 0 && pos < len(header) && !claimed[pos] {
			*idx = pos
			claimed[pos] = true
		}
	}
	fill(&cols.code, defaultModuleColumns.code)
	fill(&cols.kind, defaultModuleColumns.kind)
	fill(&cols.term, defaultModuleColumns.term)
	fill(&cols.credits, defaultModuleColumns.credits)
	return cols
}

// AwardLevel returns the first known award token in the row, scanning cells
// left to right, or "" when the row names no award.
func AwardLevel(row []string) string {
	for _, cell := range row {
		words := strings.FieldsFunc(cell, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if degreeLevels[w] {
				return w
			}
		}
	}
	return ""
}

// awardCourses turns each award row into a Course, in row order.
func awardCourses(t Table) []Course {
	var courses []Course
	for _, row := range t[1:] {
		if level := AwardLevel(row); level != "" {
			courses = append(courses, Course{Level: level})
		}
	}
	return courses
}
