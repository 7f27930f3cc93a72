package parser

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FilenameInfo is what can be read from a Programme Specification file name
// such as "G400-BEng-Computer-Science-(Software-Engineering)-2024-25.pdf".
type FilenameInfo struct {
	Code         string
	Title        string
	AcademicYear string // fallback only; document text wins
}

var (
	programmeCodeRe = regexp.MustCompile(`^[A-Za-z]\d{3}$`)
	yearSuffixRe    = regexp.MustCompile(`(?:^|-)(\d{4})-\d{2}$`)
)

// degreeLevels is the set of award tokens recognised in file names and award
// tables, in no particular order.
var degreeLevels = map[string]bool{
	"MEng": true, "BEng": true, "BSc": true, "MSc": true, "MSci": true,
	"BA": true, "MA": true, "MRes": true, "MPhil": true, "PhD": true,
	"MBBS": true, "BMedSci": true, "MBA": true, "MPH": true, "EngD": true,
	"PGDip": true, "PGCert": true, "GradDip": true, "LLB": true, "LLM": true,
}

// ParseFilename extracts programme fields from a file name. It never fails:
// fields that cannot be found are left empty.
func ParseFilename(name string) FilenameInfo {
	var info FilenameInfo

	stem := strings.TrimSpace(filepath.Base(name))
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))

	if m := yearSuffixRe.FindStringSubmatchIndex(stem); m != nil {
		info.AcademicYear = stem[m[2]:m[3]]
		stem = stem[:m[0]]
	}

	var words []string
	for _, tok := range strings.Split(stem, "-") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if info.Code == "" && programmeCodeRe.MatchString(tok) {
			info.Code = strings.ToUpper(tok)
			continue
		}
		if degreeLevels[strings.Trim(tok, "()")] {
			continue
		}
		words = append(words, tok)
	}

	title := strings.Join(words, " ")
	title = strings.NewReplacer("(", "", ")", "").Replace(title)
	info.Title = strings.Join(strings.Fields(title), " ")
	return info
}
