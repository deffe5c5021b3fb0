package output

import (
	"fmt"
	"io"
	"time"

	"github.com/pipegate-dev/pipegate/internal/engine"
	"github.com/pipegate-dev/pipegate/internal/gate"
)

// MarkdownFormatter formats run results as Markdown, suitable for
// pull-request comments and CI run summaries.
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new Markdown formatter.
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the run result as Markdown. The gate section comes
// first so the verdict is visible without expanding anything.
func (f *MarkdownFormatter) Format(result *engine.RunResult) error {
	if _, err := io.WriteString(f.writer, gate.RenderMarkdown(result.Gate)); err != nil {
		return err
	}

	fmt.Fprintln(f.writer)
	fmt.Fprintf(f.writer, "**Pipeline:** %s (v%s)  \n", result.PipelineName, result.PipelineVersion)
	fmt.Fprintf(f.writer, "**Run ID:** `%s`  \n", result.RunID)
	fmt.Fprintf(f.writer, "**Duration:** %s\n", result.Duration.Round(time.Millisecond))

	failureDetails := collectFailureDetails(result)
	if len(failureDetails) > 0 {
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, "<details>")
		fmt.Fprintln(f.writer, "<summary>Failure details</summary>")
		fmt.Fprintln(f.writer)
		for _, detail := range failureDetails {
			fmt.Fprintln(f.writer, detail)
		}
		fmt.Fprintln(f.writer, "</details>")
	}

	return nil
}

// collectFailureDetails gathers per-stage diagnostics for non-passing stages.
func collectFailureDetails(result *engine.RunResult) []string {
	var details []string
	for _, outcome := range result.Stages {
		if !outcome.Status.IsFailure() {
			continue
		}

		detail := fmt.Sprintf("**%s** (%s)", outcome.ID, outcome.Status)
		if outcome.Message != "" {
			detail += ": " + outcome.Message
		}
		if outcome.Output != "" {
			detail += "\n\n```\n" + outcome.Output + "\n```"
		}
		details = append(details, detail)
	}
	return details
}
