// Package pipeline runs one extraction and translation request end to end:
// locate the input, extract its text, translate it, optionally persist it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pagetrans/pkg/document"
	"github.com/dasmlab/pagetrans/pkg/persist"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

// DefaultTargetLanguage is used when a request leaves the language empty.
const DefaultTargetLanguage = "english"

// textSourceName stands in for the missing source file of literal text.
const textSourceName = "text.txt"

// Request is one submission of the form.
type Request struct {
	// Input is a file path, a file:// URI, or literal text.
	Input string
	// StartPage and EndPage are inclusive 0-based indices, PDF only.
	StartPage int
	EndPage   int
	// TargetLanguage is a menu name ("german") or a language code ("de").
	TargetLanguage string
	// Download persists every translated unit under Pages/.
	Download bool
	// Prefix names persisted files; blank uses the source file name.
	Prefix string
}

// Config wires a Pipeline.
type Config struct {
	Translator translate.Translator
	Extractor  *document.Extractor
	Persister  *persist.Persister
	Languages  *translate.LanguageMapper
	// SourceLanguage is passed to the backend, "auto" by default.
	SourceLanguage string
	// TextOutputDir receives Pages/ for literal text input.
	TextOutputDir string
	Logger        *logrus.Logger
}

// Pipeline is stateless between runs and safe for concurrent use.
type Pipeline struct {
	translator     translate.Translator
	extractor      *document.Extractor
	persister      *persist.Persister
	languages      *translate.LanguageMapper
	sourceLanguage string
	textOutputDir  string
	logger         *logrus.Logger
}

// New creates a Pipeline. Only Translator is required.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Translator == nil {
		return nil, errors.New("pipeline: translator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = document.NewExtractor(nil, cfg.Logger)
	}
	if cfg.Persister == nil {
		cfg.Persister = persist.NewPersister(cfg.Logger)
	}
	if cfg.Languages == nil {
		cfg.Languages = translate.NewLanguageMapper()
	}
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = translate.AutoDetect
	}
	if cfg.TextOutputDir == "" {
		cfg.TextOutputDir = "."
	}

	return &Pipeline{
		translator:     cfg.Translator,
		extractor:      cfg.Extractor,
		persister:      cfg.Persister,
		languages:      cfg.Languages,
		sourceLanguage: cfg.SourceLanguage,
		textOutputDir:  cfg.TextOutputDir,
		logger:         cfg.Logger,
	}, nil
}

// Languages returns the language menu.
func (p *Pipeline) Languages() []translate.Language {
	return p.languages.Choices()
}

// TranslateText is the translator adapter: blank text is rejected without
// calling the backend, and a backend failure becomes a typed error.
func (p *Pipeline) TranslateText(ctx context.Context, text, targetCode string) (string, *Error) {
	if strings.TrimSpace(text) == "" {
		return "", newError(KindEmptyText, msgEmptyText, nil)
	}

	out, err := p.translator.Translate(ctx, text, p.sourceLanguage, targetCode)
	if err != nil {
		return "", newError(KindTranslationFailed, err.Error(), err)
	}
	return out, nil
}

// Run executes one request. It never returns a Go error: every failure is
// carried in Result.Err or, for PDF pages, in the page's own Err.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.WithFields(logrus.Fields{
		"run_id":      res.RunID,
		"target_lang": req.TargetLanguage,
		"download":    req.Download,
	})

	p.run(ctx, req, res, log)

	duration := time.Since(start)
	recordRun(res, duration)
	fields := logrus.Fields{
		"source":      res.Source,
		"pages":       len(res.Pages),
		"files":       len(res.Files),
		"duration_ms": duration.Milliseconds(),
	}
	if res.Err != nil {
		log.WithFields(fields).WithField("error_kind", res.Err.Kind).Warn(res.Err.Message)
	} else {
		log.WithFields(fields).Info("Pipeline run completed")
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, req Request, res *Result, log *logrus.Entry) {
	if req.Input == "" {
		res.Err = newError(KindEmptyInput, msgEmptyInput, nil)
		return
	}

	label := strings.ToLower(strings.TrimSpace(req.TargetLanguage))
	if label == "" {
		label = DefaultTargetLanguage
	}
	res.TargetLanguage = label
	code, err := p.languages.Resolve(label)
	if err != nil {
		res.Err = newError(KindUnsupportedLanguage, fmt.Sprintf("Unsupported target language %q.", req.TargetLanguage), err)
		return
	}

	in := document.Locate(req.Input)
	if in.Kind == document.KindText {
		res.Source = SourceText
		log.Debug("Input is literal text")
		source := filepath.Join(p.textOutputDir, textSourceName)
		p.runSingle(ctx, in.Text, source, code, req, res)
		return
	}

	res.Path = in.Path
	fileType, err := document.Classify(in.Ext)
	if err != nil {
		res.Err = newError(KindUnsupportedFileType, msgUnsupportedFileType, err)
		return
	}

	log.WithFields(logrus.Fields{
		"path": in.Path,
		"type": fileType,
	}).Debug("Input is a file")

	switch fileType {
	case document.FileTypeTXT:
		res.Source = SourceTXT
		text, err := p.extractor.ReadText(in.Path)
		if err != nil {
			res.Err = newError(KindExtractionFailed, err.Error(), err)
			return
		}
		p.runSingle(ctx, text, in.Path, code, req, res)
	case document.FileTypePDF:
		res.Source = SourcePDF
		p.runPDF(ctx, in.Path, code, req, res)
	}
}

// runSingle translates one unit numbered page 0.
func (p *Pipeline) runSingle(ctx context.Context, text, source, code string, req Request, res *Result) {
	translated, terr := p.TranslateText(ctx, text, code)
	recordPage(terr != nil)
	page := PageResult{Page: 0, Text: translated, Err: terr}

	if req.Download {
		if perr := p.save(&page, source, res.TargetLanguage, req.Prefix, res); perr != nil {
			res.Err = perr
			return
		}
	}

	res.Pages = append(res.Pages, page)
	if terr != nil {
		res.Err = terr
	}
}

// runPDF walks [StartPage, EndPage]. A page that cannot be extracted stops
// the run and drops the pages gathered so far; a page that cannot be
// translated keeps its error in its own block and the run continues.
func (p *Pipeline) runPDF(ctx context.Context, path, code string, req Request, res *Result) {
	if req.StartPage < 0 || req.EndPage < req.StartPage {
		res.Err = newError(KindInvalidPageRange,
			fmt.Sprintf("Invalid page range %d-%d.", req.StartPage, req.EndPage), nil)
		return
	}

	doc, err := p.extractor.OpenPDF(path)
	if err != nil {
		res.Err = newError(KindExtractionFailed, err.Error(), err)
		return
	}
	defer doc.Close()

	pages := make([]PageResult, 0, max(0, min(req.EndPage, doc.NumPages()-1)-req.StartPage+1))
	for n := req.StartPage; n <= req.EndPage; n++ {
		text, err := doc.PageText(n)
		if err != nil {
			var pageErr *document.PageError
			if errors.As(err, &pageErr) {
				res.Err = pageNotFound(n, err)
			} else {
				res.Err = newError(KindExtractionFailed, err.Error(), err)
				res.Err.Page = n
			}
			return
		}

		translated, terr := p.TranslateText(ctx, text, code)
		recordPage(terr != nil)
		if terr != nil {
			terr.Page = n
		}
		page := PageResult{Page: n, Text: translated, Err: terr}

		if req.Download {
			if perr := p.save(&page, path, res.TargetLanguage, req.Prefix, res); perr != nil {
				res.Err = perr
				return
			}
		}
		pages = append(pages, page)
	}
	res.Pages = pages
}

// save writes the unit as rendered, so a failed translation leaves its
// error text in the file.
func (p *Pipeline) save(page *PageResult, source, lang, prefix string, res *Result) *Error {
	file, err := p.persister.Save(page.Rendered(), source, page.Page, lang, prefix)
	if err != nil {
		perr := newError(KindPersistFailed, err.Error(), err)
		perr.Page = page.Page
		return perr
	}
	pipelineFilesWritten.Inc()
	page.File = file
	res.Files = append(res.Files, file)
	return nil
}
