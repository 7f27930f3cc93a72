package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Each recognizer finds one field in raw page text.

var (
	academicYearRe  = regexp.MustCompile(`Programme\s+Specification\s+(\d{4})\s*[-–—]\s*\d{2}`)
	departmentRe    = regexp.MustCompile(`(?m)\bDepartment[ \t]+([^\n]+)$`)
	facultySuffixRe = regexp.MustCompile(`\s*\b(?:Faculty\s+)?Faculty\s+of\b.*$`)
	facultyRe       = regexp.MustCompile(`(?m)\bFaculty[ \t]+(Faculty[ \t]+of[ \t]+[^\n]+)$`)
	yearLevelRe     = regexp.MustCompile(`Year\s+(\d+)\s*[-–—]\s*FHEQ\s+Level\s+(\d+)`)
)

// YearHeader is one "Year N - FHEQ Level M" sighting. Offset is the byte
// position of the match in the page text.
type YearHeader struct {
	Year   int
	Level  int
	Offset int
}

// RecognizeAcademicYear returns the start year from
// "Programme Specification 2024-25", or "" when absent.
func RecognizeAcademicYear(text string) string {
	m := academicYearRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// RecognizeDepartment returns the department name with any trailing
// "Faculty of ..." clause removed, or "" when absent.
func RecognizeDepartment(text string) string {
	m := departmentRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	name := facultySuffixRe.ReplaceAllString(m[1], "")
	return strings.TrimSpace(name)
}

// RecognizeFaculty returns "Faculty of ..." from a "Faculty Faculty of ..."
// line, or nil when absent.
func RecognizeFaculty(text string) *string {
	m := facultyRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	faculty := strings.Join(strings.Fields(m[1]), " ")
	return &faculty
}

// RecognizeYearHeaders returns every year/level header in text order.
func RecognizeYearHeaders(text string) []YearHeader {
	var headers []YearHeader
	for _, m := range yearLevelRe.FindAllStringSubmatchIndex(text, -1) {
		year, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		level, err := strconv.Atoi(text[m[4]:m[5]])
		if err != nil {
			continue
		}
		headers = append(headers, YearHeader{Year: year, Level: level, Offset: m[0]})
	}
	return headers
}
