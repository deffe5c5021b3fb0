package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/pipegate-dev/pipegate/internal/engine"
	"github.com/pipegate-dev/pipegate/internal/notify"
	"github.com/pipegate-dev/pipegate/internal/output"
	"github.com/pipegate-dev/pipegate/internal/redaction"
	"github.com/pipegate-dev/pipegate/internal/version"
	"github.com/spf13/cobra"
)

var (
	runFormat        string
	runOutFile       string
	runStrict        bool
	runSkippedIsPass bool
	runStageIDs      []string
	runExcludeIDs    []string
	runSequential    bool
	runMaxConcurrent int
	runNotifyURL     string
	runNoNotify      bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <pipeline.yaml>",
	Short: "Run a pipeline and evaluate its quality gate",
	Long: `Load a pipeline definition, run its stages as external tools, and
combine their terminal statuses into a quality-gate verdict.

The command exits non-zero when the gate fails. A warn verdict (for
example a skipped required stage) exits zero unless --strict is set.

Filtering:
  --stage backend,security      Run only these stages (exclusive)
  --exclude-stage slow-e2e      Skip specific stages

Stages held back by a filter are recorded as skipped and still feed
the gate, so filtering a required stage degrades the verdict to warn
rather than silently passing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipelineAction(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFormat, "format", "table", "Output format: table, markdown, json, yaml, junit, sarif")
	runCmd.Flags().StringVarP(&runOutFile, "output", "o", "", "Output file path (default: stdout)")
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "Treat skipped required stages as blocking failures")
	runCmd.Flags().BoolVar(&runSkippedIsPass, "skipped-is-pass", false, "Treat skipped required stages as passing")
	runCmd.Flags().StringSliceVar(&runStageIDs, "stage", nil, "Run specific stages by ID (exclusive, comma-separated)")
	runCmd.Flags().StringSliceVar(&runExcludeIDs, "exclude-stage", nil, "Exclude specific stages by ID (comma-separated)")
	runCmd.Flags().BoolVar(&runSequential, "sequential", false, "Run stages one at a time instead of per dependency level")
	runCmd.Flags().IntVar(&runMaxConcurrent, "max-concurrent", 0, "Maximum stages running in parallel (0 = system config or default)")
	runCmd.Flags().StringVar(&runNotifyURL, "notify-url", "", "Report delivery endpoint (overrides pipeline and system config)")
	runCmd.Flags().BoolVar(&runNoNotify, "no-notify", false, "Skip report delivery even if an endpoint is configured")
}

// runPipelineAction implements the core logic for the run command
func runPipelineAction(ctx context.Context, pipelinePath string) error {
	slog.Info("loading pipeline", "path", pipelinePath)

	// Schema validation catches structural mistakes with precise paths
	// before the typed loader sees the document.
	raw, err := os.ReadFile(pipelinePath) //nolint:gosec // G304: user-supplied pipeline path is intentional
	if err != nil {
		return fmt.Errorf("failed to read pipeline: %w", err)
	}
	if err := config.ValidateDocument(raw); err != nil {
		return fmt.Errorf("pipeline schema validation failed: %w", err)
	}

	pipeline, err := config.LoadPipeline(pipelinePath)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}

	slog.Info("pipeline loaded", "name", pipeline.Metadata.Name, "version", pipeline.Metadata.Version)

	if err := config.SubstituteVariables(pipeline); err != nil {
		return fmt.Errorf("failed to substitute variables: %w", err)
	}

	if err := config.Validate(pipeline); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}

	if err := validateStageFilters(pipeline); err != nil {
		return err
	}

	slog.Info("pipeline validated", "stages", pipeline.StageCount())

	sysConfig, err := loadSystemConfig()
	if err != nil {
		slog.Debug("failed to load system config, using defaults", "error", err)
		sysConfig = config.DefaultSystemConfig()
	}

	redactor, err := redaction.New(redaction.Config{
		Patterns: sysConfig.Redaction.Patterns,
		HashMode: sysConfig.Redaction.HashMode.Enabled,
		Salt:     sysConfig.Redaction.HashMode.Salt,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize redactor: %w", err)
	}

	execConfig := engine.DefaultExecutionConfig()
	execConfig.IncludeStageIDs = runStageIDs
	execConfig.ExcludeStageIDs = runExcludeIDs
	execConfig.Strict = runStrict
	execConfig.SkippedIsPass = runSkippedIsPass
	execConfig.Parallel = !runSequential
	if runMaxConcurrent > 0 {
		execConfig.MaxConcurrentStages = runMaxConcurrent
	} else if sysConfig.MaxConcurrentStages > 0 {
		execConfig.MaxConcurrentStages = sysConfig.MaxConcurrentStages
	}

	executor := engine.NewStageExecutor(redactor, sysConfig.MaxOutputSizeBytes)
	eng := engine.New(execConfig, executor, slog.Default())

	result, err := eng.Execute(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	writer := os.Stdout
	if runOutFile != "" {
		//nolint:gosec // G304: user-controlled output file path is intentional
		file, err := os.Create(runOutFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			_ = file.Close() // Best-effort cleanup
		}()
		writer = file
		slog.Info("writing output", "file", runOutFile, "format", runFormat)
	}

	formatter, err := output.NewFormatter(runFormat, writer, output.Options{
		Indent:       true,
		PipelinePath: pipelinePath,
		ToolVersion:  version.Get().String(),
	})
	if err != nil {
		return err
	}
	if err := formatter.Format(result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	sendReport(ctx, pipeline, sysConfig, result)

	if result.Gate.Overall.IsBlocking() {
		return fmt.Errorf("gate failed: blocked by %s", strings.Join(result.Gate.Blocking, ", "))
	}
	return nil
}

// sendReport delivers the gate report when an endpoint is configured.
// Delivery problems are logged, never escalated: the verdict already
// happened.
func sendReport(ctx context.Context, pipeline *config.Pipeline, sysConfig *config.SystemConfig, result *engine.RunResult) {
	if runNoNotify {
		return
	}

	url := runNotifyURL
	timeout := sysConfig.Notify.Timeout
	if url == "" && pipeline.Notify != nil {
		url = pipeline.Notify.URL
		if pipeline.Notify.Timeout > 0 {
			timeout = pipeline.Notify.Timeout
		}
	}
	if url == "" {
		url = sysConfig.Notify.URL
	}
	if url == "" {
		return
	}

	notifier := notify.New(url, timeout, slog.Default())
	if err := notifier.Send(ctx, notify.BuildReport(result)); err != nil {
		slog.Warn("failed to deliver gate report", "url", url, "error", err)
	}
}

// validateStageFilters checks that --stage and --exclude-stage
// reference stages that exist.
func validateStageFilters(pipeline *config.Pipeline) error {
	for _, id := range runStageIDs {
		if !pipeline.HasStage(id) {
			return fmt.Errorf("--stage references non-existent stage: %s", id)
		}
	}
	for _, id := range runExcludeIDs {
		if !pipeline.HasStage(id) {
			return fmt.Errorf("--exclude-stage references non-existent stage: %s", id)
		}
	}
	return nil
}

// loadSystemConfig loads the global configuration from ~/.pipegate/config.yaml.
func loadSystemConfig() (*config.SystemConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(homeDir, ".pipegate", "config.yaml")

	return config.LoadSystemConfig(configPath)
}
