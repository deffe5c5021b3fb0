package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/engine"
	"github.com/pipegate-dev/pipegate/internal/gate"
)

// TableFormatter formats run results as a human-readable table.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// Format writes the run result as a table.
func (f *TableFormatter) Format(result *engine.RunResult) error {
	fmt.Fprintf(f.writer, "Pipeline: %s (v%s)\n", result.PipelineName, result.PipelineVersion)
	fmt.Fprintf(f.writer, "Run ID:   %s\n", result.RunID)
	fmt.Fprintf(f.writer, "Executed: %s\n", result.StartTime.Format(time.RFC3339))
	fmt.Fprintf(f.writer, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintln(f.writer)

	if len(result.Stages) == 0 {
		fmt.Fprintln(f.writer, "No stages executed.")
	} else {
		fmt.Fprintln(f.writer, "Stages:")
		fmt.Fprintln(f.writer, strings.Repeat("─", 80))

		for _, outcome := range result.Stages {
			f.formatStage(outcome)
		}

		fmt.Fprintln(f.writer, strings.Repeat("─", 80))
		fmt.Fprintln(f.writer)

		f.formatSummary(result.Summary)
		fmt.Fprintln(f.writer)
	}

	fmt.Fprintln(f.writer, "Gate:")
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))
	fmt.Fprint(f.writer, gate.Render(result.Gate))
	fmt.Fprintln(f.writer, strings.Repeat("─", 80))

	return nil
}

// formatStage formats a single stage outcome.
func (f *TableFormatter) formatStage(outcome engine.StageOutcome) {
	fmt.Fprintf(f.writer, "%s %s: %s\n", getStatusSymbol(outcome.Status), outcome.ID, outcome.Name)

	fmt.Fprintf(f.writer, "  Kind: %s\n", outcome.Kind)
	fmt.Fprintf(f.writer, "  Status: %s\n", strings.ToUpper(string(outcome.Status)))

	if !outcome.Required {
		fmt.Fprintln(f.writer, "  Optional: yes")
	}
	if outcome.Message != "" {
		fmt.Fprintf(f.writer, "  Message: %s\n", outcome.Message)
	}
	if outcome.Status != values.StatusSkipped {
		fmt.Fprintf(f.writer, "  Exit code: %d\n", outcome.ExitCode)
		if outcome.Attempts > 1 {
			fmt.Fprintf(f.writer, "  Attempts: %d\n", outcome.Attempts)
		}
	}
	if outcome.Coverage != nil {
		fmt.Fprintf(f.writer, "  Coverage: %.1f%%\n", *outcome.Coverage)
	}
	if len(outcome.Expectations) > 0 {
		fmt.Fprintln(f.writer, "  Expectations:")
		for i, exp := range outcome.Expectations {
			symbol := "✓"
			if !exp.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(f.writer, "    %d. %s %s\n", i+1, symbol, exp.Expression)
			if exp.Error != "" {
				fmt.Fprintf(f.writer, "       Error: %s\n", exp.Error)
			}
		}
	}
	fmt.Fprintf(f.writer, "  Duration: %s\n", outcome.Duration.Round(time.Millisecond))

	fmt.Fprintln(f.writer)
}

// formatSummary formats the summary statistics.
func (f *TableFormatter) formatSummary(summary engine.ResultSummary) {
	fmt.Fprintf(f.writer, "Stages:        %d total\n", summary.TotalStages)
	fmt.Fprintf(f.writer, "  ✓ Succeeded: %d\n", summary.SucceededStages)
	fmt.Fprintf(f.writer, "  ✗ Failed:    %d\n", summary.FailedStages)
	fmt.Fprintf(f.writer, "  ⚠ Cancelled: %d\n", summary.CancelledStages)
	fmt.Fprintf(f.writer, "  - Skipped:   %d\n", summary.SkippedStages)
}

// getStatusSymbol returns a symbol for the given status.
func getStatusSymbol(status values.Status) string {
	switch status {
	case values.StatusSuccess:
		return "✓"
	case values.StatusFailure:
		return "✗"
	case values.StatusCancelled:
		return "⚠"
	case values.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}
