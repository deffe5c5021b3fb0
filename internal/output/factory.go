// Package output provides formatters for pipegate run results.
package output

import (
	"fmt"
	"io"

	"github.com/pipegate-dev/pipegate/internal/engine"
)

// Formatter renders a run result to its writer.
type Formatter interface {
	Format(result *engine.RunResult) error
}

// Options carries format-specific settings.
type Options struct {
	// Indent pretty-prints JSON output
	Indent bool
	// PipelinePath locates the pipeline definition for formats that
	// reference it (SARIF)
	PipelinePath string
	// ToolVersion is embedded in formats that identify the producing tool
	ToolVersion string
}

// NewFormatter returns a formatter for the given format name.
func NewFormatter(format string, writer io.Writer, options Options) (Formatter, error) {
	switch format {
	case "table":
		return NewTableFormatter(writer), nil
	case "markdown":
		return NewMarkdownFormatter(writer), nil
	case "json":
		return NewJSONFormatter(writer, options.Indent), nil
	case "yaml":
		return NewYAMLFormatter(writer), nil
	case "junit":
		return NewJUnitFormatter(writer), nil
	case "sarif":
		return NewSARIFFormatter(writer, options.PipelinePath, options.ToolVersion), nil
	default:
		return nil, fmt.Errorf(
			"unknown format: %s (supported: %v)",
			format, SupportedFormats(),
		)
	}
}

// SupportedFormats returns the list of available format names.
func SupportedFormats() []string {
	return []string{"table", "markdown", "json", "yaml", "junit", "sarif"}
}
