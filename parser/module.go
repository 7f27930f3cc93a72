package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MinModuleCodeLength is the shortest code accepted, e.g. "CS101".
const MinModuleCodeLength = 5

var (
	moduleCodeRe = regexp.MustCompile(`^[A-Za-z]+[0-9]+$`)
	lineBreakRe  = regexp.MustCompile(`[ \t]*\r?\n[ \t]*`)
)

// RejectReason explains why a module row was dropped.
type RejectReason string

const (
	RejectEmptyCode     RejectReason = "empty code"
	RejectMalformedCode RejectReason = "malformed code"
)

// Rejection is a dropped module row.
type Rejection struct {
	Page   int          `json:"page"`
	Row    int          `json:"row"`
	Code   string       `json:"code"`
	Reason RejectReason `json:"reason"`
}

// RowOutcome is either an accepted record or a rejection, never both.
type RowOutcome struct {
	Record   *ModuleRecord
	Rejected *Rejection
}

// Accepted reports whether the row produced a record.
func (o RowOutcome) Accepted() bool { return o.Record != nil }

// ValidModuleCode reports whether code is letters immediately followed by
// digits, with nothing else, and at least MinModuleCodeLength long.
func ValidModuleCode(code string) bool {
	return len(code) >= MinModuleCodeLength && moduleCodeRe.MatchString(code)
}

// NormalizeTitle joins a title that was wrapped across lines inside a cell.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(lineBreakRe.ReplaceAllString(title, " "))
}

// ParseCredits converts a credits cell. Empty or unparseable cells give nil,
// which is distinct from an explicit zero.
func ParseCredits(cell string) *float64 {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// BuildModule converts one data row of a module table.
func BuildModule(row []string, cols moduleColumns) RowOutcome {
	code := strings.TrimSpace(cellAt(row, cols.code))
	if code == "" {
		return RowOutcome{Rejected: &Rejection{Reason: RejectEmptyCode}}
	}
	if !ValidModuleCode(code) {
		return RowOutcome{Rejected: &Rejection{Code: code, Reason: RejectMalformedCode}}
	}
	return RowOutcome{Record: &ModuleRecord{
		Code:    code,
		Title:   NormalizeTitle(cellAt(row, cols.title)),
		Type:    cellAt(row, cols.kind),
		Term:    cellAt(row, cols.term),
		Credits: ParseCredits(cellAt(row, cols.credits)),
	}}
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
