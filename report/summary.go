package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/poiesic/cebingest/core"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Bold(true)
)

// Output names a file produced by a run.
type Output struct {
	Label string
	Path  string
}

// Summary renders the end-of-run table for a stage.
func Summary(stats *core.RunStatistics, outputs ...Output) string {
	rows := [][]string{
		{"Run", stats.RunID},
		{"Total", strconv.Itoa(stats.TotalItems)},
		{"Successful", strconv.Itoa(stats.Successful)},
		{"Failed", strconv.Itoa(stats.Failed)},
	}
	if stats.Skipped > 0 {
		rows = append(rows, []string{"Skipped (resumed)", strconv.Itoa(stats.Skipped)})
	}
	rows = append(rows, []string{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate())})

	switch stats.Stage {
	case core.StageExtract:
		rows = append(rows,
			[]string{"Pages", strconv.Itoa(stats.TotalPages)},
			[]string{"Chunks", strconv.Itoa(stats.TotalChunks)})
	case core.StageEmbed:
		rows = append(rows,
			[]string{"Model", stats.Model},
			[]string{"Tokens", strconv.Itoa(stats.TotalTokens)},
			[]string{"Estimated cost", fmt.Sprintf("$%.4f", stats.EstimatedCost)})
	case core.StageUpload:
		rows = append(rows, []string{"Namespace", stats.Namespace})
	}

	rows = append(rows, []string{"Duration", stats.Duration().Round(time.Millisecond).String()})
	for _, o := range outputs {
		rows = append(rows, []string{o.Label, o.Path})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Metric", "Value").
		Rows(rows...)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s complete - %s", strings.ToUpper(string(stats.Stage)), stats.Category)))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	if stats.Failed > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d items failed; see the failure listing", stats.Failed)))
		b.WriteString("\n")
	}
	return b.String()
}
