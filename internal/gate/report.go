package gate

import (
	"fmt"
	"strings"

	"github.com/pipegate-dev/pipegate/internal/domain/values"
)

// Render produces the plain-text report for a verdict: one line per summary
// row plus an overall verdict line. The output is a pure function of the
// verdict, so rendering the same verdict twice yields identical text.
func Render(v Verdict) string {
	var b strings.Builder

	for _, line := range v.Summary {
		fmt.Fprintf(&b, "%s %s: %s", statusSymbol(line.Status), line.Name, line.Status)
		if line.Blocked {
			b.WriteString(" (blocking)")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Overall: %s", strings.ToUpper(string(v.Overall)))
	if len(v.Blocking) > 0 {
		fmt.Fprintf(&b, " (blocked by: %s)", strings.Join(v.Blocking, ", "))
	}
	b.WriteString("\n")

	return b.String()
}

// RenderMarkdown produces the same information as Render formatted for a
// pull-request comment or run summary.
func RenderMarkdown(v Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Quality Gate: %s %s\n\n", verdictEmoji(v.Overall), strings.ToUpper(string(v.Overall)))

	if len(v.Summary) > 0 {
		b.WriteString("| Stage | Status | Blocking |\n")
		b.WriteString("|-------|--------|----------|\n")
		for _, line := range v.Summary {
			blocked := ""
			if line.Blocked {
				blocked = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s %s | %s |\n", line.Name, statusSymbol(line.Status), line.Status, blocked)
		}
		b.WriteString("\n")
	}

	if len(v.Blocking) > 0 {
		fmt.Fprintf(&b, "Blocked by: %s\n", strings.Join(v.Blocking, ", "))
	}

	return b.String()
}

// statusSymbol returns a symbol for the given status.
func statusSymbol(status values.Status) string {
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

// verdictEmoji returns a marker for the overall verdict in markdown output.
func verdictEmoji(v values.Verdict) string {
	switch v {
	case values.VerdictPass:
		return "✅"
	case values.VerdictFail:
		return "❌"
	case values.VerdictWarn:
		return "⚠️"
	default:
		return "❔"
	}
}
