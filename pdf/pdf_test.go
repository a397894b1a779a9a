package pdf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSplitPages(t *testing.T) {
	text := "first page\fsecond page\f   \n\ffourth page\f"
	pages := SplitPages(text)

	require.Len(t, pages, 3)
	assert.Equal(t, Page{Number: 1, Text: "first page"}, pages[0])
	assert.Equal(t, Page{Number: 2, Text: "second page"}, pages[1])
	assert.Equal(t, Page{Number: 4, Text: "fourth page"}, pages[2])
}

func TestSplitPages_NoFormFeed(t *testing.T) {
	pages := SplitPages("all on one page")
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
}

func TestSplitPages_Empty(t *testing.T) {
	assert.Empty(t, SplitPages(""))
	assert.Empty(t, SplitPages("\f\f \t\f"))
}

func TestExtractor_WithMockRunner(t *testing.T) {
	path := writeFile(t, "doc.pdf", "%PDF-1.4 fake pdf content")
	runner := &mockRunner{output: []byte("Page one text\fPage two text\f")}

	pages, err := NewWithRunner(runner).ExtractPages(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Page two text", pages[1].Text)

	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-enc", "UTF-8", "-eol", "unix", path, "-"}, runner.args)
}

func TestExtractor_NotPDF(t *testing.T) {
	path := writeFile(t, "corrupt.pdf", "this is not a pdf")
	runner := &mockRunner{}

	_, err := NewWithRunner(runner).ExtractPages(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Empty(t, runner.name, "runner should not be invoked for non-PDF input")

	empty := writeFile(t, "empty.pdf", "")
	_, err = NewWithRunner(runner).ExtractPages(context.Background(), empty)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestExtractor_MissingFile(t *testing.T) {
	_, err := NewWithRunner(&mockRunner{}).ExtractPages(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractor_RunnerError(t *testing.T) {
	path := writeFile(t, "doc.pdf", "%PDF-1.7")
	runner := &mockRunner{err: errors.New("Syntax Error: Couldn't find trailer dictionary")}

	_, err := NewWithRunner(runner).ExtractPages(context.Background(), path)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "trailer dictionary")
}

func TestExtractor_NoText(t *testing.T) {
	path := writeFile(t, "scanned.pdf", "%PDF-1.4")
	runner := &mockRunner{output: []byte("\f  \f\n\f")}

	_, err := NewWithRunner(runner).ExtractPages(context.Background(), path)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestDocconvExtractor_NotPDF(t *testing.T) {
	path := writeFile(t, "corrupt.pdf", "garbage")
	_, err := NewDocconv().ExtractPages(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestDocconvExtractor_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDocconv().ExtractPages(ctx, "unused.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDocconvWholeDocument(t *testing.T) {
	pages, err := wholeDocument("doc.pdf", "first page\fsecond page")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "first page\nsecond page", pages[0].Text)

	_, err = wholeDocument("blank.pdf", " \n\f\t")
	assert.ErrorIs(t, err, ErrNoText)
}

func TestInstallInstructions(t *testing.T) {
	instructions := InstallInstructions()
	assert.Contains(t, instructions, "pdftotext")
	assert.Contains(t, instructions, "brew install poppler")
	assert.Contains(t, instructions, "apt install poppler-utils")
	assert.NotContains(t, instructions, "--pdf-engine docconv")
}

func TestErrPDFToolNotFound(t *testing.T) {
	assert.Contains(t, ErrPDFToolNotFound.Error(), "pdftotext")
}

// Integration test - only runs if pdftotext is available.
func TestExtractor_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if err := CheckAvailable(); err != nil {
		t.Skip("pdftotext not available, skipping integration test")
	}

	path := writeFile(t, "corrupt.pdf", "%PDF-1.4\nnot really a pdf body")
	_, err := New().ExtractPages(context.Background(), path)
	require.Error(t, err)
	// poppler may reject the file outright or recover an empty document
	assert.True(t, errors.Is(err, ErrExtractionFailed) || errors.Is(err, ErrNoText), "unexpected error: %v", err)
}
