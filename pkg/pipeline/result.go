package pipeline

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a pipeline failure so callers can branch on it.
type ErrorKind string

const (
	KindEmptyInput          ErrorKind = "empty_input"
	KindEmptyText           ErrorKind = "empty_text"
	KindUnsupportedLanguage ErrorKind = "unsupported_language"
	KindInvalidPageRange    ErrorKind = "invalid_page_range"
	KindPageNotFound        ErrorKind = "page_not_found"
	KindUnsupportedFileType ErrorKind = "unsupported_file_type"
	KindExtractionFailed    ErrorKind = "extraction_failed"
	KindTranslationFailed   ErrorKind = "translation_failed"
	KindPersistFailed       ErrorKind = "persist_failed"
)

// Fixed user-facing messages.
const (
	msgEmptyInput          = "Please provide a text sentence or a file path."
	msgEmptyText           = "Input text is empty or cannot be extracted."
	msgUnsupportedFileType = "Unsupported file type. Please provide a PDF or TXT file."
)

// Error is a failed pipeline step. Error() renders the text shown to users.
type Error struct {
	Kind    ErrorKind
	Message string
	// Page is the 0-based page the error belongs to, or -1.
	Page int
	Err  error
}

func (e *Error) Error() string {
	return "Error: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Page: -1, Err: cause}
}

func pageNotFound(page int, cause error) *Error {
	return &Error{
		Kind:    KindPageNotFound,
		Message: fmt.Sprintf("Page %d does not exist in the PDF.", page),
		Page:    page,
		Err:     cause,
	}
}

// SourceKind says what the input turned out to be.
type SourceKind string

const (
	SourceText SourceKind = "text"
	SourceTXT  SourceKind = "txt"
	SourcePDF  SourceKind = "pdf"
)

// PageResult is one translated unit. Literal text and TXT files have a
// single unit with page 0.
type PageResult struct {
	Page int
	Text string
	Err  *Error
	File string
}

// Rendered is the translation, or the error text when translation failed.
func (p PageResult) Rendered() string {
	if p.Err != nil {
		return p.Err.Error()
	}
	return p.Text
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID          string
	Source         SourceKind
	Path           string
	TargetLanguage string
	Pages          []PageResult
	Files          []string
	Err            *Error
}

// OK reports whether the run finished without a run-level error.
// PDF page blocks may still carry their own translation errors.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Text is the single string shown to the user.
func (r *Result) Text() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if r.Source != SourcePDF {
		if len(r.Pages) == 0 {
			return ""
		}
		return r.Pages[0].Rendered()
	}

	var b strings.Builder
	for _, p := range r.Pages {
		fmt.Fprintf(&b, "Page %d:\n\n%s\n\n---\n\n", p.Page, p.Rendered())
	}
	return b.String()
}
