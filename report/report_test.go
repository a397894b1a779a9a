package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/cebingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var finished = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

func extractStats() *core.RunStatistics {
	return &core.RunStatistics{
		RunID:       "run-1",
		Stage:       core.StageExtract,
		Category:    "family_law",
		TotalItems:  3,
		Successful:  2,
		Failed:      1,
		TotalChunks: 40,
		TotalPages:  12,
		StartTime:   finished.Add(-time.Minute),
		EndTime:     finished,
	}
}

func TestWriteStatistics_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "family_law", "processing_log.json")
	stats := extractStats()

	require.NoError(t, WriteStatistics(path, stats))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stage": "extract"`)
	assert.Contains(t, string(data), `"total_pages": 12`)

	loaded, err := ReadStatistics(path)
	require.NoError(t, err)
	assert.Equal(t, stats, loaded)
}

func TestWriteFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_pdfs.txt")
	failures := []core.Failure{
		{Item: "broken_0004_scan.pdf", Error: "not a PDF file"},
		{Item: "blank.pdf", Error: "no extractable text"},
	}

	require.NoError(t, WriteFailures(path, extractStats(), failures))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "Failed PDFs - family_law\n"))
	assert.Contains(t, text, "Generated: 2025-11-01T12:00:00Z")
	assert.Contains(t, text, "File: broken_0004_scan.pdf\nError: not a PDF file\n")
	assert.Contains(t, text, "File: blank.pdf\nError: no extractable text\n")
}

func TestWriteFailures_ChunkLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_embeddings.txt")
	stats := &core.RunStatistics{Stage: core.StageEmbed, Category: "civil", EndTime: finished}

	require.NoError(t, WriteFailures(path, stats, []core.Failure{{Item: "civil_doc_0001", Error: "rate limited"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Failed Embeddings - civil")
	assert.Contains(t, string(data), "Chunk: civil_doc_0001\n")
}

func TestWriteFailures_RemovesStaleListing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_pdfs.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, WriteFailures(path, extractStats(), nil))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Nothing to remove is fine too
	require.NoError(t, WriteFailures(path, extractStats(), nil))
}

func TestWriteUploadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload_report.txt")
	stats := &core.RunStatistics{
		Stage:      core.StageUpload,
		Category:   "family_law",
		Namespace:  "ceb_family_law",
		TotalItems: 250,
		Successful: 150,
		Failed:     100,
		EndTime:    finished,
	}

	require.NoError(t, WriteUploadReport(path, stats))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "CEB Upstash Upload Report - family_law")
	assert.Contains(t, text, "Namespace: ceb_family_law\n")
	assert.Contains(t, text, "Total Vectors: 250\n")
	assert.Contains(t, text, "Success Rate: 60.0%\n")
	assert.Contains(t, text, "100 vectors failed to upload")
}

func TestWriteUploadReport_AllSucceededAndEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload_report.txt")
	stats := &core.RunStatistics{Stage: core.StageUpload, Category: "x", EndTime: finished}

	require.NoError(t, WriteUploadReport(path, stats))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Success Rate: 0.0%")
	assert.Contains(t, string(data), "All vectors uploaded successfully!")
}

func TestSummary(t *testing.T) {
	out := Summary(extractStats(), Output{Label: "Chunks file", Path: "data/family_law/chunks.jsonl"})

	assert.Contains(t, out, "EXTRACT complete - family_law")
	for _, want := range []string{"Metric", "Successful", "Pages", "12", "Chunks", "40", "66.7%", "1m0s", "data/family_law/chunks.jsonl"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "1 items failed")
	assert.NotContains(t, out, "Tokens")
}

func TestSummary_Embed(t *testing.T) {
	stats := &core.RunStatistics{
		Stage:         core.StageEmbed,
		Category:      "family_law",
		TotalItems:    100,
		Successful:    60,
		Skipped:       40,
		Model:         "text-embedding-3-small",
		TotalTokens:   123456,
		EstimatedCost: 0.00246912,
	}

	out := Summary(stats)
	for _, want := range []string{"Skipped (resumed)", "40", "text-embedding-3-small", "123456", "$0.0025"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "items failed")
}
