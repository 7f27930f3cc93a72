package parser

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Layout settings for rebuilding lines, cells and tables from positioned
// glyph runs. Distances are in PDF points.
const (
	rowTolerance       = 3.0  // same visual line when Y differs by less
	defaultFontSize    = 10.0 // used when a run reports no size
	wordGapFactor      = 0.2  // gap > size*factor inserts a space
	cellGapFactor      = 1.5  // gap > size*factor starts a new cell
	minCellGap         = 8.0  // floor for the cell gap at small sizes
	columnSlack        = 4.0  // tolerance when matching a cell to a column start
	continuationFactor = 1.4  // wrapped cell lines sit closer than table rows
	tableBreakFactor   = 3.0  // a larger vertical gap ends a table
)

type layoutCell struct {
	x, right float64
	text     string
}

type layoutLine struct {
	y        float64
	fontSize float64
	cells    []layoutCell
}

func (l layoutLine) text() string {
	parts := make([]string, len(l.cells))
	for i, c := range l.cells {
		parts[i] = c.text
	}
	return strings.Join(parts, " ")
}

// buildLines groups runs into visual lines, top of page first, and splits
// each line into cells at wide horizontal gaps.
func buildLines(runs []pdf.Text) []layoutLine {
	type bucket struct {
		y    float64
		runs []pdf.Text
	}
	var buckets []*bucket
	for _, t := range runs {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		var home *bucket
		for _, b := range buckets {
			if math.Abs(b.y-t.Y) < rowTolerance {
				home = b
				break
			}
		}
		if home == nil {
			home = &bucket{y: t.Y}
			buckets = append(buckets, home)
		}
		home.runs = append(home.runs, t)
	}

	// Higher Y is higher on the page.
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].y > buckets[j].y })

	lines := make([]layoutLine, 0, len(buckets))
	for _, b := range buckets {
		sort.SliceStable(b.runs, func(i, j int) bool { return b.runs[i].X < b.runs[j].X })
		lines = append(lines, splitCells(b.y, b.runs))
	}
	return lines
}

func splitCells(y float64, runs []pdf.Text) layoutLine {
	line := layoutLine{y: y}
	var (
		cur     strings.Builder
		curX    float64
		prevEnd float64
		sizeSum float64
	)
	flush := func() {
		if cur.Len() > 0 {
			line.cells = append(line.cells, layoutCell{x: curX, right: prevEnd, text: strings.TrimSpace(cur.String())})
			cur.Reset()
		}
	}
	for i, t := range runs {
		size := t.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		sizeSum += size
		if i > 0 {
			gap := t.X - prevEnd
			switch {
			case gap > math.Max(size*cellGapFactor, minCellGap):
				flush()
			case gap > size*wordGapFactor:
				cur.WriteByte(' ')
			}
		}
		if cur.Len() == 0 {
			curX = t.X
		}
		cur.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	flush()
	if len(runs) > 0 {
		line.fontSize = sizeSum / float64(len(runs))
	}
	return line
}

// pageText renders lines as plain text, one line per row.
func pageText(lines []layoutLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.text()
	}
	return strings.Join(parts, "\n")
}

// layoutPage renders lines and records where each detected table's header
// line starts in the rendered text.
func layoutPage(lines []layoutLine) textPage {
	lineStart := make([]int, len(lines))
	pos := 0
	for i, l := range lines {
		lineStart[i] = pos
		pos += len(l.text()) + 1
	}
	tables, starts := locateTables(lines)
	offsets := make([]int, len(starts))
	for i, s := range starts {
		offsets[i] = lineStart[s]
	}
	return textPage{text: pageText(lines), tables: tables, offsets: offsets}
}

// locateTables finds runs of multi-cell lines and rebuilds them as tables
// using the header line's cell positions as column starts. A line whose first
// column is empty and that sits close under the previous line is the wrapped
// continuation of that row. starts holds the index of each table's header
// line.
func locateTables(lines []layoutLine) (tables []Table, starts []int) {
	for i := 0; i < len(lines); {
		if len(lines[i].cells) < 2 {
			i++
			continue
		}
		header := lines[i]
		colStarts := make([]float64, len(header.cells))
		for c, cell := range header.cells {
			colStarts[c] = cell.x
		}

		table := Table{placeCells(header, colStarts)}
		prev := header
		j := i + 1
		for ; j < len(lines); j++ {
			l := lines[j]
			size := prev.fontSize
			if size <= 0 {
				size = defaultFontSize
			}
			dy := prev.y - l.y
			if dy > size*tableBreakFactor {
				break
			}
			row := placeCells(l, colStarts)
			firstEmpty := strings.TrimSpace(row[0]) == ""
			if len(l.cells) < 2 && !firstEmpty {
				break // prose or a heading back in the first column
			}
			if firstEmpty && dy <= size*continuationFactor {
				mergeContinuation(table[len(table)-1], row)
			} else {
				table = append(table, row)
			}
			prev = l
		}
		if len(table) > 1 {
			tables = append(tables, table)
			starts = append(starts, i)
		}
		i = j
	}
	return tables, starts
}

// placeCells assigns each cell to the last column whose start it reaches.
func placeCells(l layoutLine, starts []float64) []string {
	row := make([]string, len(starts))
	for _, cell := range l.cells {
		col := 0
		for c, s := range starts {
			if cell.x >= s-columnSlack {
				col = c
			}
		}
		if row[col] != "" {
			row[col] += " "
		}
		row[col] += cell.text
	}
	return row
}

func mergeContinuation(dst, cont []string) {
	for c, text := range cont {
		if text == "" {
			continue
		}
		if dst[c] == "" {
			dst[c] = text
		} else {
			dst[c] += "\n" + text
		}
	}
}
