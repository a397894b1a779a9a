package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/storage"
	"github.com/stretchr/testify/require"
)

const testCategory = "family_law"

var testTime = time.Date(2025, 11, 1, 9, 30, 0, 0, time.UTC)

func testClock() time.Time { return testTime }

func testConfig() *Config {
	return &Config{
		BatchSize:          10,
		MaxRetries:         2,
		RetryDelay:         time.Millisecond,
		BatchDelay:         0,
		CheckpointInterval: 0,
		ReportInterval:     10,
	}
}

// runnerFunc adapts a function to pdf.CommandRunner.
type runnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f runnerFunc) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// textRunner answers pdftotext calls with the text registered for the
// file's base name.
func textRunner(texts map[string]string) runnerFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		path := args[len(args)-2]
		text, ok := texts[filepath.Base(path)]
		if !ok {
			return nil, fmt.Errorf("syntax error: couldn't read xref table")
		}
		return []byte(text), nil
	}
}

// pageText returns a page of prose long enough to produce several chunks.
func pageText(topic string, sentences int) string {
	var b strings.Builder
	for i := range sentences {
		fmt.Fprintf(&b, "Sentence %d about %s explains how the court weighs the evidence presented. ", i, topic)
	}
	return b.String()
}

func writePDF(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4\n% test fixture\n"), 0o644))
}

func makeChunks(n int) []core.ChunkRecord {
	chunks := make([]core.ChunkRecord, n)
	for i := range chunks {
		text := fmt.Sprintf("Chunk %d. %s", i, pageText(fmt.Sprintf("topic %d", i), 2))
		chunks[i] = core.ChunkRecord{
			ChunkID:       core.ChunkID(testCategory, "guide_0001_intro", i),
			SourceFile:    "guide_0001_intro.pdf",
			Category:      testCategory,
			Title:         "Guide",
			Section:       "Intro",
			Citation:      "CEB: Guide, Intro",
			PageNumber:    1 + i/3,
			ChunkIndex:    i,
			Text:          text,
			TokenCount:    len(text) / 4,
			TotalChunks:   n,
			ContentHash:   core.ContentHash(text),
			ProcessedDate: testTime,
		}
	}
	return chunks
}

func writeRecords[T any](t *testing.T, path string, records []T) {
	t.Helper()
	log, err := storage.OpenLog[T](path, storage.ModeTruncate)
	require.NoError(t, err)
	require.NoError(t, log.AppendAll(records))
	require.NoError(t, log.Close())
}

func readRecords[T any](t *testing.T, path string) []T {
	t.Helper()
	records, err := storage.ReadAll[T](path)
	require.NoError(t, err)
	return records
}

func appendRaw(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
