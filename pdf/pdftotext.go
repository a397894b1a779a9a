package pdf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const pdftotextBinary = "pdftotext"

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, exitErr.Stderr)
		}
		return nil, err
	}
	return out, nil
}

// Extractor shells out to poppler's pdftotext. Page boundaries come from
// the form feed pdftotext writes after every page.
type Extractor struct {
	runner CommandRunner
}

// New creates an Extractor that runs the real pdftotext binary.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an Extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// ExtractPages implements PageExtractor.
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]Page, error) {
	if err := checkHeader(path); err != nil {
		return nil, err
	}

	out, err := e.runner.Run(ctx, pdftotextBinary, "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}

	return pagesOrError(path, string(out))
}

// CheckAvailable reports whether pdftotext can be found in PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath(pdftotextBinary); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return `pdftotext is required for PDF extraction.

Install poppler:
  macOS:          brew install poppler
  Ubuntu/Debian:  apt install poppler-utils
  Fedora:         dnf install poppler-utils

The docconv engine also runs pdftotext and needs the same install.`
}

var _ PageExtractor = (*Extractor)(nil)
