package pdf

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
)

// DocconvExtractor extracts text with code.sajari.com/docconv. docconv runs
// poppler's pdftotext with page breaks suppressed, so the whole document is
// returned as a single page numbered 1. Use Extractor when page numbers
// matter.
type DocconvExtractor struct{}

// NewDocconv creates a DocconvExtractor.
func NewDocconv() *DocconvExtractor {
	return &DocconvExtractor{}
}

// ExtractPages implements PageExtractor.
func (d *DocconvExtractor) ExtractPages(ctx context.Context, path string) ([]Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkHeader(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	body, _, err := docconv.ConvertPDF(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtractionFailed, path, err)
	}

	return wholeDocument(path, body)
}

// wholeDocument returns text as one page numbered 1, or ErrNoText when it
// has no visible content.
func wholeDocument(path, text string) ([]Page, error) {
	text = strings.ReplaceAll(text, "\f", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return []Page{{Number: 1, Text: text}}, nil
}

var _ PageExtractor = (*DocconvExtractor)(nil)
