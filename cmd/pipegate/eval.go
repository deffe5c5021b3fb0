package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pipegate-dev/pipegate/internal/gate"
	"github.com/spf13/cobra"
)

var (
	evalFormat        string
	evalStrict        bool
	evalSkippedIsPass bool
	evalRequired      []string
)

// evalInput is the YAML document the eval command consumes: stage
// results collected elsewhere (a CI matrix, another orchestrator) plus
// an optional list of stage names that must be present.
type evalInput struct {
	Stages         []gate.StageResult `yaml:"stages"`
	RequiredStages []string           `yaml:"required_stages,omitempty"`
}

// evalCmd represents the eval command
var evalCmd = &cobra.Command{
	Use:   "eval <results.yaml>",
	Short: "Evaluate a quality gate over pre-collected stage results",
	Long: `Combine terminal stage statuses into a gate verdict without running
anything. Use "-" to read the results document from stdin.

The document lists stage results and, optionally, the stages that must
be present:

  stages:
    - name: backend
      status: success
      required: true
    - name: security
      status: failure
      required: true
  required_stages: [backend, security, frontend]

Unknown status tokens and required stages missing from the document
count as failures. The command exits non-zero when the gate fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runEvalAction(args[0])
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVar(&evalFormat, "format", "text", "Output format: text, markdown, json, yaml")
	evalCmd.Flags().BoolVar(&evalStrict, "strict", false, "Treat skipped required stages as blocking failures")
	evalCmd.Flags().BoolVar(&evalSkippedIsPass, "skipped-is-pass", false, "Treat skipped required stages as passing")
	evalCmd.Flags().StringSliceVar(&evalRequired, "required", nil, "Stage names that must be present (adds to the document's list)")
}

// runEvalAction implements the core logic for the eval command
func runEvalAction(inputPath string) error {
	data, err := readEvalInput(inputPath)
	if err != nil {
		return err
	}

	verdict, err := evaluateDocument(data, evalRequired, evalStrict, evalSkippedIsPass)
	if err != nil {
		return err
	}

	if err := writeVerdict(os.Stdout, verdict, evalFormat); err != nil {
		return err
	}

	if verdict.Overall.IsBlocking() {
		return fmt.Errorf("gate failed: blocked by %s", strings.Join(verdict.Blocking, ", "))
	}
	return nil
}

func readEvalInput(inputPath string) ([]byte, error) {
	if inputPath == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	//nolint:gosec // G304: user-supplied results path is intentional
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return data, nil
}

// evaluateDocument parses a results document and evaluates the gate.
// extraRequired names are merged with the document's required_stages.
func evaluateDocument(data []byte, extraRequired []string, strict, skippedIsPass bool) (gate.Verdict, error) {
	var input evalInput
	if err := yaml.Unmarshal(data, &input); err != nil {
		return gate.Verdict{}, fmt.Errorf("failed to parse results document: %w", err)
	}

	policy := gate.Policy{
		RequiredStages: append(input.RequiredStages, extraRequired...),
		Strict:         strict,
		SkippedIsPass:  skippedIsPass,
	}

	return gate.Evaluate(input.Stages, policy), nil
}

// writeVerdict renders the verdict in the requested format.
func writeVerdict(w io.Writer, verdict gate.Verdict, format string) error {
	switch format {
	case "text":
		_, err := io.WriteString(w, gate.Render(verdict))
		return err
	case "markdown":
		_, err := io.WriteString(w, gate.RenderMarkdown(verdict))
		return err
	case "json":
		data, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(verdict)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format: %s (supported: text, markdown, json, yaml)", format)
	}
}
