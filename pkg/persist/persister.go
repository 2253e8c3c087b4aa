// Package persist writes translated pages next to their source file.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// PagesDir is the directory created beside the source file.
const PagesDir = "Pages"

// Persister writes one UTF-8 text file per translated unit.
type Persister struct {
	logger *logrus.Logger
}

// NewPersister creates a Persister.
func NewPersister(logger *logrus.Logger) *Persister {
	if logger == nil {
		logger = logrus.New()
	}
	return &Persister{logger: logger}
}

// OutputPath returns where Save would write. The stem comes from prefix
// (base name, extension dropped) and falls back to the source file's stem.
func OutputPath(sourcePath string, page int, langCode, prefix string) string {
	stem := stemOf(prefix)
	if stem == "" {
		stem = stemOf(sourcePath)
	}
	name := fmt.Sprintf("%s_page_%d_%s.txt", stem, page, langCode)
	return filepath.Join(filepath.Dir(sourcePath), PagesDir, name)
}

// Save writes text to OutputPath, creating the Pages directory when needed
// and overwriting any previous file. It returns the path written.
func (p *Persister) Save(text, sourcePath string, page int, langCode, prefix string) (string, error) {
	out := OutputPath(sourcePath, page, langCode, prefix)

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create pages dir: %w", err)
	}
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}

	p.logger.WithFields(logrus.Fields{
		"path":  out,
		"page":  page,
		"lang":  langCode,
		"bytes": len(text),
	}).Info("Saved translated page")
	return out, nil
}

func stemOf(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
