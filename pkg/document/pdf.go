package document

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFDocument is an open PDF whose pages can be read one at a time.
// Page indices are 0-based.
type PDFDocument interface {
	NumPages() int
	PageText(index int) (string, error)
	Close() error
}

// PDFOpener opens PDF files. Tests swap it for an in-memory fake.
type PDFOpener interface {
	Open(path string) (PDFDocument, error)
}

// LedongthucOpener reads PDFs with github.com/ledongthuc/pdf, a pure Go
// parser. With Strict set, pdfcpu parses and validates the file first so
// corrupt input is rejected before any page is read.
type LedongthucOpener struct {
	Strict bool
}

// Open implements PDFOpener.
func (o LedongthucOpener) Open(path string) (doc PDFDocument, err error) {
	want := -1
	if o.Strict {
		if want, err = preflight(path); err != nil {
			return nil, err
		}
	}

	var f *os.File
	// ledongthuc/pdf panics on some malformed objects
	defer func() {
		if rec := recover(); rec != nil {
			if f != nil {
				_ = f.Close()
			}
			doc, err = nil, fmt.Errorf("open pdf: %v", rec)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	if want >= 0 && n != want {
		_ = f.Close()
		return nil, fmt.Errorf("validate pdf: page count mismatch: pdfcpu %d, reader %d", want, n)
	}
	return &ledongthucDocument{file: f, reader: r, pages: n}, nil
}

// preflight runs pdfcpu's reader and validator over the file and returns
// its page count.
func preflight(path string) (pages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("validate pdf: %v", rec)
		}
	}()

	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return 0, fmt.Errorf("validate pdf: %w", err)
	}
	if ctx.PageCount == 0 {
		return 0, fmt.Errorf("validate pdf: document has no pages")
	}
	return ctx.PageCount, nil
}

type ledongthucDocument struct {
	file   *os.File
	reader *pdf.Reader
	pages  int
}

func (d *ledongthucDocument) NumPages() int {
	return d.pages
}

func (d *ledongthucDocument) PageText(index int) (text string, err error) {
	if index < 0 || index >= d.pages {
		return "", &PageError{Page: index}
	}
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("extract page %d: %v", index, rec)
		}
	}()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", &PageError{Page: index}
	}
	// A page without a content stream has no text
	if page.V.Key("Contents").Kind() == pdf.Null {
		return "", nil
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", index, err)
	}
	return text, nil
}

func (d *ledongthucDocument) Close() error {
	return d.file.Close()
}
