package parser

import (
	"reflect"
	"testing"

	"github.com/ledongthuc/pdf"
)

// word places s at (x, y) in a 10pt font, 5pt per character.
func word(x, y float64, s string) pdf.Text {
	return pdf.Text{Font: "Helvetica", FontSize: 10, X: x, Y: y, W: float64(len(s)) * 5, S: s}
}

func TestBuildLines(t *testing.T) {
	runs := []pdf.Text{
		word(110, 700, "Computing"),
		word(40, 700.5, "Department"),
		word(40, 720, "Programme"),
		word(88, 720, "Specification"),
		{X: 10, Y: 650, S: "  "},
	}
	lines := buildLines(runs)
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if got := pageText(lines); got != "Programme Specification\nDepartment Computing" {
		t.Errorf("pageText = %q", got)
	}
	// "Department" ends at 90; "Computing" starts 20pt later, past the cell gap.
	if len(lines[1].cells) != 2 {
		t.Errorf("department line cells = %d, want 2", len(lines[1].cells))
	}
}

func TestLayoutPage(t *testing.T) {
	runs := []pdf.Text{
		word(40, 760, "Year"), word(65, 760, "1"), word(75, 760, "-"), word(85, 760, "FHEQ"),
		word(110, 760, "Level"), word(140, 760, "4"),

		word(40, 740, "Code"), word(120, 740, "Module"), word(155, 740, "Title"),
		word(300, 740, "Core/Elective"), word(400, 740, "Term"), word(460, 740, "Credits"),

		word(40, 726, "COMP40001"), word(120, 726, "Introduction"), word(185, 726, "to"),
		word(300, 726, "Core"), word(400, 726, "Autumn"), word(460, 726, "6.0"),
		word(120, 715, "Programming"),

		word(40, 700, "COMP40002"), word(120, 700, "Algorithms"),
		word(300, 700, "Core"), word(400, 700, "Spring"), word(460, 700, "7.5"),

		word(40, 640, "Assessment"),
	}
	page := layoutPage(buildLines(runs))
	tables := page.tables
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1: %q", len(tables), tables)
	}
	want := Table{
		{"Code", "Module Title", "Core/Elective", "Term", "Credits"},
		{"COMP40001", "Introduction to\nProgramming", "Core", "Autumn", "6.0"},
		{"COMP40002", "Algorithms", "Core", "Spring", "7.5"},
	}
	if !reflect.DeepEqual(tables[0], want) {
		t.Errorf("table =\n%q\nwant\n%q", tables[0], want)
	}

	// The table starts on the line after the year header.
	if want := []int{len("Year 1 - FHEQ Level 4") + 1}; !reflect.DeepEqual(page.offsets, want) {
		t.Errorf("offsets = %v, want %v", page.offsets, want)
	}

	// The rebuilt table runs through the pipeline like any other.
	rec, _, err := Extract(t.Context(), "G400-Test-2024-25.pdf",
		&TextDocument{pages: []textPage{page}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	mods := rec.ModulesByYear["year_1"].Modules
	if len(mods) != 2 || mods[0].Title != "Introduction to Programming" {
		t.Errorf("modules = %+v", mods)
	}
}

func TestLocateTablesIgnoresProse(t *testing.T) {
	lines := buildLines([]pdf.Text{
		word(40, 700, "The"), word(60, 700, "programme"), word(110, 700, "aims"),
		word(40, 686, "to"), word(55, 686, "develop"),
	})
	if tables, _ := locateTables(lines); len(tables) != 0 {
		t.Errorf("tables = %q, want none", tables)
	}
}
