package parser

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// PDFDocument reads Programme Specification PDFs. Lines, cells and tables
// are rebuilt from positioned text runs since PDFs carry no table structure.
type PDFDocument struct {
	f      *os.File
	reader *pdf.Reader
}

// OpenPDF opens path. Any failure to read the file as a PDF is reported as
// ErrDocumentUnreadable, and the file is closed on every failure path,
// including a panic inside the PDF reader.
func OpenPDF(path string) (doc Document, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrDocumentUnreadable, err)
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("%w: opening PDF: %v", ErrDocumentUnreadable, r)
		}
		if err != nil {
			f.Close()
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrDocumentUnreadable, err)
	}
	reader, err := pdf.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrDocumentUnreadable, err)
	}
	return &PDFDocument{f: f, reader: reader}, nil
}

func (d *PDFDocument) NumPages() int { return d.reader.NumPage() }

// Page lays out page n. Content streams the library cannot decode surface as
// an error for that page only.
func (d *PDFDocument) Page(n int) (p Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return textPage{}, nil
	}

	return layoutPage(buildLines(page.Content().Text)), nil
}

func (d *PDFDocument) Close() error { return d.f.Close() }
