package document

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
)

// FileType is a supported source file format.
type FileType string

const (
	FileTypePDF FileType = "pdf"
	FileTypeTXT FileType = "txt"
)

// ErrUnsupportedFileType is returned for any extension other than .pdf or .txt.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// PageError reports a page index outside the document.
type PageError struct {
	Page int
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d does not exist", e.Page)
}

// Classify maps a lower-cased extension to a FileType without touching the file.
func Classify(ext string) (FileType, error) {
	switch ext {
	case ".pdf":
		return FileTypePDF, nil
	case ".txt":
		return FileTypeTXT, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// Extractor reads text out of located files.
type Extractor struct {
	opener PDFOpener
	logger *logrus.Logger
}

// NewExtractor creates an Extractor. A nil opener uses LedongthucOpener.
func NewExtractor(opener PDFOpener, logger *logrus.Logger) *Extractor {
	if opener == nil {
		opener = LedongthucOpener{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{opener: opener, logger: logger}
}

// OpenPDF opens the PDF at path. The caller must Close the document.
func (e *Extractor) OpenPDF(path string) (PDFDocument, error) {
	doc, err := e.opener.Open(path)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"path": path,
		}).Error("Failed to open PDF")
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"path":  path,
		"pages": doc.NumPages(),
	}).Debug("Opened PDF")
	return doc, nil
}

// ReadText reads a whole text file as UTF-8. A leading byte order mark is dropped.
func (e *Extractor) ReadText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}

	// The decoder would replace bad bytes with U+FFFD, so validate first
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("decode text file: %s is not valid UTF-8", path)
	}
	decoded, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode text file: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"path":  path,
		"bytes": len(decoded),
	}).Debug("Read text file")
	return string(decoded), nil
}
