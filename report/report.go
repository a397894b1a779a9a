// Package report writes the end-of-run outputs of a stage: the statistics
// log, the failure listing, the upload report and the terminal summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/cebingest/core"
)

const ruleWidth = 80

// WriteStatistics writes stats as indented JSON to path.
func WriteStatistics(path string, stats *core.RunStatistics) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// ReadStatistics reads a statistics file written by WriteStatistics.
func ReadStatistics(path string) (*core.RunStatistics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var stats core.RunStatistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &stats, nil
}

// WriteFailures writes the failure listing of a run so the failed subset
// can be found and re-run by hand. With no failures any stale listing at
// path is removed.
func WriteFailures(path string, stats *core.RunStatistics, failures []core.Failure) error {
	if len(failures) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	heading, label := failureLabels(stats.Stage)
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", heading, stats.Category)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt(stats).Format(time.RFC3339))
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", ruleWidth))
	for _, f := range failures {
		fmt.Fprintf(&b, "%s: %s\n", label, f.Item)
		fmt.Fprintf(&b, "Error: %s\n", f.Error)
		fmt.Fprintf(&b, "%s\n", strings.Repeat("-", ruleWidth))
	}
	return writeFile(path, []byte(b.String()))
}

// WriteUploadReport writes the plain-text summary of an upload run.
func WriteUploadReport(path string, stats *core.RunStatistics) error {
	var b strings.Builder
	fmt.Fprintf(&b, "CEB Upstash Upload Report - %s\n", stats.Category)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", ruleWidth))
	fmt.Fprintf(&b, "Upload Date: %s\n", generatedAt(stats).Format(time.RFC3339))
	fmt.Fprintf(&b, "Namespace: %s\n", stats.Namespace)
	fmt.Fprintf(&b, "Total Vectors: %d\n", stats.TotalItems)
	fmt.Fprintf(&b, "Successful: %d\n", stats.Successful)
	fmt.Fprintf(&b, "Failed: %d\n", stats.Failed)
	fmt.Fprintf(&b, "Success Rate: %.1f%%\n", stats.SuccessRate())
	fmt.Fprintf(&b, "\n%s\n\n", strings.Repeat("=", ruleWidth))

	if stats.Failed == 0 {
		b.WriteString("All vectors uploaded successfully!\n")
	} else {
		fmt.Fprintf(&b, "%d vectors failed to upload\n", stats.Failed)
		b.WriteString("Please check logs and retry if needed\n")
	}
	return writeFile(path, []byte(b.String()))
}

func failureLabels(stage core.Stage) (heading, label string) {
	switch stage {
	case core.StageExtract:
		return "Failed PDFs", "File"
	case core.StageEmbed:
		return "Failed Embeddings", "Chunk"
	case core.StageUpload:
		return "Failed Uploads", "Chunk"
	default:
		return "Failures", "Item"
	}
}

func generatedAt(stats *core.RunStatistics) time.Time {
	if !stats.EndTime.IsZero() {
		return stats.EndTime
	}
	return time.Now().UTC()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
