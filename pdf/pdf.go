// Package pdf extracts per-page text from PDF files.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrNotPDF indicates the file does not carry a PDF header.
	ErrNotPDF = errors.New("not a PDF file")

	// ErrNoText indicates the PDF produced no page with extractable text.
	ErrNoText = errors.New("no extractable text")

	// ErrExtractionFailed indicates the extraction engine rejected the file.
	ErrExtractionFailed = errors.New("pdf text extraction failed")
)

var pdfMagic = []byte("%PDF-")

// Page is the text of one PDF page. Number starts at 1.
type Page struct {
	Number int
	Text   string
}

// PageExtractor returns the non-empty pages of a PDF.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]Page, error)
}

// SplitPages splits engine output on form feeds, numbering pages from 1.
// Pages that contain only whitespace are dropped but still count toward
// the numbering of later pages.
func SplitPages(text string) []Page {
	raw := strings.Split(text, "\f")
	pages := make([]Page, 0, len(raw))
	for i, body := range raw {
		if strings.TrimSpace(body) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: body})
	}
	return pages
}

// checkHeader verifies path opens and starts with the PDF magic bytes.
func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	if !bytes.Equal(header, pdfMagic) {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return nil
}

func pagesOrError(path, text string) ([]Page, error) {
	pages := SplitPages(text)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return pages, nil
}
