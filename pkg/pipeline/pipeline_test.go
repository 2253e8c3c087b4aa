package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/pagetrans/pkg/document"
	"github.com/dasmlab/pagetrans/pkg/persist"
)

// fakeTranslator prefixes text with the target code, or fails on demand.
type fakeTranslator struct {
	mu     sync.Mutex
	calls  []string
	failOn string
	err    error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.err != nil && (f.failOn == "" || strings.Contains(text, f.failOn)) {
		return "", f.err
	}
	return "[" + targetLang + "] " + text, nil
}

func (f *fakeTranslator) CheckHealth(ctx context.Context) error { return nil }

func (f *fakeTranslator) SupportedLanguages(ctx context.Context) ([]string, error) {
	return []string{"en", "de"}, nil
}

// fakePDF serves fixed page texts through the PDFOpener interface.
type fakePDF struct {
	pages   []string
	pageErr map[int]error
	openErr error
	closed  bool
}

func (f *fakePDF) Open(path string) (document.PDFDocument, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakePDF) NumPages() int { return len(f.pages) }

func (f *fakePDF) PageText(index int) (string, error) {
	if err, ok := f.pageErr[index]; ok {
		return "", err
	}
	if index < 0 || index >= len(f.pages) {
		return "", &document.PageError{Page: index}
	}
	return f.pages[index], nil
}

func (f *fakePDF) Close() error {
	f.closed = true
	return nil
}

type fixture struct {
	pipeline   *Pipeline
	translator *fakeTranslator
	pdf        *fakePDF
	dir        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		translator: &fakeTranslator{},
		pdf:        &fakePDF{pages: []string{"eins", "zwei", "drei"}},
		dir:        t.TempDir(),
	}
	p, err := New(Config{
		Translator:    f.translator,
		Extractor:     document.NewExtractor(f.pdf, logger),
		Persister:     persist.NewPersister(logger),
		TextOutputDir: f.dir,
		Logger:        logger,
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_RequiresTranslator(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRun_LiteralText(t *testing.T) {
	f := newFixture(t)

	res := f.pipeline.Run(context.Background(), Request{
		Input:          "Bonjour le monde",
		TargetLanguage: "english",
	})

	require.True(t, res.OK())
	assert.Equal(t, SourceText, res.Source)
	assert.Equal(t, "[en] Bonjour le monde", res.Text())
	assert.NotEmpty(t, res.RunID)
	assert.Empty(t, res.Files)

	_, err := os.Stat(filepath.Join(f.dir, persist.PagesDir))
	assert.True(t, os.IsNotExist(err), "no files without download")
}

func TestRun_DefaultLanguage(t *testing.T) {
	f := newFixture(t)
	res := f.pipeline.Run(context.Background(), Request{Input: "Hallo"})
	require.True(t, res.OK())
	assert.Equal(t, "english", res.TargetLanguage)
	assert.Equal(t, "[en] Hallo", res.Text())
}

func TestRun_EmptyInput(t *testing.T) {
	f := newFixture(t)
	res := f.pipeline.Run(context.Background(), Request{Input: "", TargetLanguage: "french"})

	require.False(t, res.OK())
	assert.Equal(t, KindEmptyInput, res.Err.Kind)
	assert.Equal(t, "Error: Please provide a text sentence or a file path.", res.Text())
	assert.Empty(t, f.translator.calls)
}

func TestRun_BlankTextNeverReachesBackend(t *testing.T) {
	for _, lang := range []string{"english", "german", "japanese", "arabic"} {
		f := newFixture(t)
		res := f.pipeline.Run(context.Background(), Request{Input: " \t\n ", TargetLanguage: lang})

		require.False(t, res.OK())
		assert.Equal(t, KindEmptyText, res.Err.Kind)
		assert.Equal(t, "Error: Input text is empty or cannot be extracted.", res.Text())
		assert.Empty(t, f.translator.calls)
	}
}

func TestRun_TranslationFailure(t *testing.T) {
	f := newFixture(t)
	f.translator.err = errors.New("quota exceeded")

	res := f.pipeline.Run(context.Background(), Request{Input: "Hola", TargetLanguage: "english"})

	require.False(t, res.OK())
	assert.Equal(t, KindTranslationFailed, res.Err.Kind)
	assert.Equal(t, "Error: quota exceeded", res.Text())
	assert.True(t, strings.HasPrefix(res.Text(), "Error: "))
}

func TestRun_UnsupportedLanguage(t *testing.T) {
	f := newFixture(t)
	res := f.pipeline.Run(context.Background(), Request{Input: "Hola", TargetLanguage: "klingon"})

	require.False(t, res.OK())
	assert.Equal(t, KindUnsupportedLanguage, res.Err.Kind)
	assert.Empty(t, f.translator.calls)
}

func TestRun_UnsupportedFileType(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"report.docx", "table.csv", "README"} {
		path := f.file(t, name, "content")
		res := f.pipeline.Run(context.Background(), Request{Input: path, TargetLanguage: "german", Download: true})

		require.False(t, res.OK(), name)
		assert.Equal(t, KindUnsupportedFileType, res.Err.Kind)
		assert.Equal(t, "Error: Unsupported file type. Please provide a PDF or TXT file.", res.Text())
	}

	assert.Empty(t, f.translator.calls)
	_, err := os.Stat(filepath.Join(f.dir, persist.PagesDir))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_TXTFile(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "letter.txt", "Liebe Grüße")

	res := f.pipeline.Run(context.Background(), Request{
		Input:          path,
		TargetLanguage: "spanish",
		Download:       true,
		Prefix:         "out",
	})

	require.True(t, res.OK())
	assert.Equal(t, SourceTXT, res.Source)
	assert.Equal(t, "[es] Liebe Grüße", res.Text())

	want := filepath.Join(f.dir, "Pages", "out_page_0_spanish.txt")
	require.Equal(t, []string{want}, res.Files)
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "[es] Liebe Grüße", string(got))
}

func TestRun_LiteralTextDownload(t *testing.T) {
	f := newFixture(t)

	res := f.pipeline.Run(context.Background(), Request{Input: "Ciao", TargetLanguage: "french", Download: true})

	require.True(t, res.OK())
	want := filepath.Join(f.dir, "Pages", "text_page_0_french.txt")
	assert.Equal(t, []string{want}, res.Files)
	assert.FileExists(t, want)
}

func TestRun_PDFRangeWithDownload(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "book.pdf", "%PDF-fake")

	res := f.pipeline.Run(context.Background(), Request{
		Input:          path,
		StartPage:      0,
		EndPage:        1,
		TargetLanguage: "german",
		Download:       true,
		Prefix:         "doc",
	})

	require.True(t, res.OK())
	assert.Equal(t, SourcePDF, res.Source)
	assert.Equal(t,
		"Page 0:\n\n[de] eins\n\n---\n\nPage 1:\n\n[de] zwei\n\n---\n\n",
		res.Text())
	assert.True(t, f.pdf.closed)

	for i, word := range []string{"eins", "zwei"} {
		path := filepath.Join(f.dir, "Pages", fmt.Sprintf("doc_page_%d_german.txt", i))
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "[de] "+word, string(got))
	}
	assert.Len(t, res.Files, 2)
	assert.NoFileExists(t, filepath.Join(f.dir, "Pages", "doc_page_2_german.txt"))
}

func TestRun_PDFFileURI(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "x.pdf", "%PDF-fake")

	bare := f.pipeline.Run(context.Background(), Request{Input: path, EndPage: 2, TargetLanguage: "german"})
	uri := f.pipeline.Run(context.Background(), Request{
		Input:          `file://"` + filepath.ToSlash(path) + `"`,
		EndPage:        2,
		TargetLanguage: "german",
	})

	require.True(t, bare.OK())
	require.True(t, uri.OK())
	assert.Equal(t, bare.Text(), uri.Text())
}

func TestRun_PDFPageOutOfRange(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "book.pdf", "%PDF-fake")

	res := f.pipeline.Run(context.Background(), Request{
		Input:          path,
		StartPage:      1,
		EndPage:        3,
		TargetLanguage: "german",
		Download:       true,
	})

	require.False(t, res.OK())
	assert.Equal(t, KindPageNotFound, res.Err.Kind)
	assert.Equal(t, 3, res.Err.Page)
	assert.Equal(t, "Error: Page 3 does not exist in the PDF.", res.Text())
	assert.Empty(t, res.Pages, "pages before the failure are not returned")
	assert.NotContains(t, res.Text(), "zwei")

	// files written before the failure stay on disk
	assert.Len(t, res.Files, 2)
	assert.FileExists(t, filepath.Join(f.dir, "Pages", "book_page_2_german.txt"))
}

func TestRun_PDFExtractionFailure(t *testing.T) {
	f := newFixture(t)
	f.pdf.pageErr = map[int]error{1: errors.New("bad content stream")}
	path := f.file(t, "book.pdf", "%PDF-fake")

	res := f.pipeline.Run(context.Background(), Request{Input: path, EndPage: 2, TargetLanguage: "german"})

	require.False(t, res.OK())
	assert.Equal(t, KindExtractionFailed, res.Err.Kind)
	assert.Equal(t, "Error: bad content stream", res.Text())
}

func TestRun_PDFOpenFailure(t *testing.T) {
	f := newFixture(t)
	f.pdf.openErr = errors.New("open pdf: malformed header")
	path := f.file(t, "book.pdf", "garbage")

	res := f.pipeline.Run(context.Background(), Request{Input: path, TargetLanguage: "german"})

	require.False(t, res.OK())
	assert.Equal(t, KindExtractionFailed, res.Err.Kind)
	assert.Contains(t, res.Text(), "malformed header")
}

func TestRun_PDFTranslationErrorContinues(t *testing.T) {
	f := newFixture(t)
	f.translator.err = errors.New("backend down")
	f.translator.failOn = "zwei"
	path := f.file(t, "book.pdf", "%PDF-fake")

	res := f.pipeline.Run(context.Background(), Request{
		Input:          path,
		EndPage:        2,
		TargetLanguage: "german",
		Download:       true,
	})

	require.True(t, res.OK())
	require.Len(t, res.Pages, 3)
	assert.Nil(t, res.Pages[0].Err)
	require.NotNil(t, res.Pages[1].Err)
	assert.Equal(t, KindTranslationFailed, res.Pages[1].Err.Kind)
	assert.Equal(t, 1, res.Pages[1].Err.Page)
	assert.Contains(t, res.Text(), "Page 1:\n\nError: backend down\n\n---\n\n")
	assert.Contains(t, res.Text(), "Page 2:\n\n[de] drei")

	got, err := os.ReadFile(filepath.Join(f.dir, "Pages", "book_page_1_german.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Error: backend down", string(got))
}

func TestRun_PDFEmptyPage(t *testing.T) {
	f := newFixture(t)
	f.pdf.pages = []string{"", "zwei"}
	path := f.file(t, "book.pdf", "%PDF-fake")

	res := f.pipeline.Run(context.Background(), Request{Input: path, EndPage: 1, TargetLanguage: "german"})

	require.True(t, res.OK())
	assert.Equal(t, KindEmptyText, res.Pages[0].Err.Kind)
	assert.Equal(t, []string{"zwei"}, f.translator.calls)
}

func TestRun_PDFInvalidRange(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "book.pdf", "%PDF-fake")

	for _, r := range [][2]int{{2, 1}, {-1, 0}} {
		res := f.pipeline.Run(context.Background(), Request{Input: path, StartPage: r[0], EndPage: r[1]})
		require.False(t, res.OK())
		assert.Equal(t, KindInvalidPageRange, res.Err.Kind)
	}
}

func TestRun_TXTIgnoresPageRange(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.txt", "text")

	res := f.pipeline.Run(context.Background(), Request{Input: path, StartPage: 5, EndPage: 1})
	require.True(t, res.OK())
	assert.Equal(t, "[en] text", res.Text())
}

func TestRun_PersistFailure(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.txt", "text")
	// a file named Pages blocks the directory
	f.file(t, persist.PagesDir, "")

	res := f.pipeline.Run(context.Background(), Request{Input: path, Download: true})
	require.False(t, res.OK())
	assert.Equal(t, KindPersistFailed, res.Err.Kind)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := newError(KindTranslationFailed, cause.Error(), cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, -1, err.Page)
}

func TestRun_WithRealPDF(t *testing.T) {
	f := newFixture(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p, err := New(Config{Translator: f.translator, Logger: logger, TextOutputDir: f.dir})
	require.NoError(t, err)

	fixture, err := filepath.Abs(filepath.Join("..", "document", "testdata", "three_pages.pdf"))
	require.NoError(t, err)

	res := p.Run(context.Background(), Request{Input: fixture, StartPage: 0, EndPage: 3, TargetLanguage: "german"})
	require.False(t, res.OK())
	assert.Equal(t, "Error: Page 3 does not exist in the PDF.", res.Text())

	res = p.Run(context.Background(), Request{Input: fixture, StartPage: 1, EndPage: 2, TargetLanguage: "german"})
	require.True(t, res.OK())
	assert.Contains(t, res.Text(), "Page 1:\n\n[de] ")
	assert.Contains(t, res.Text(), "Hello from page two")
	assert.Contains(t, res.Text(), "Hello from page three")
}

func TestRun_MalformedPDFIsAnErrorResult(t *testing.T) {
	f := newFixture(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	p, err := New(Config{Translator: f.translator, Logger: logger, TextOutputDir: f.dir})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join("..", "document", "testdata", "three_pages.pdf"))
	require.NoError(t, err)
	for i := len(data) * 3 / 8; i < len(data)*5/8; i += 7 {
		data[i] = '('
	}
	path := filepath.Join(t.TempDir(), "mutated.pdf")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var res *Result
	require.NotPanics(t, func() {
		res = p.Run(context.Background(), Request{Input: path, EndPage: 2, TargetLanguage: "german"})
	})
	if !res.OK() {
		assert.True(t, strings.HasPrefix(res.Text(), "Error: "), res.Text())
		assert.Contains(t, []ErrorKind{KindExtractionFailed, KindPageNotFound}, res.Err.Kind)
	}
}
