package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/goccy/go-yaml"
	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/spf13/cobra"
)

// initCmd scaffolds a pipeline definition.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a pipeline definition interactively",
	Long: `Generate a starter pipeline.yaml. Interactive prompts pick the stage
kinds to include; each gets a placeholder command to replace with the
real tool invocation.`,
	Example: `  pipegate init
  pipegate init --name service-ci --no-interactive`,
	RunE: runInitAction,
}

func init() {
	initCmd.Flags().String("name", "", "Pipeline name")
	initCmd.Flags().StringSlice("kinds", nil, "Stage kinds to include (test, lint, build, scan)")
	initCmd.Flags().String("notify-url", "", "Report delivery endpoint")
	initCmd.Flags().String("output", "pipeline.yaml", "Output file path")
	initCmd.Flags().Bool("no-interactive", false, "Disable interactive prompts")

	rootCmd.AddCommand(initCmd)
}

func runInitAction(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	kinds, _ := cmd.Flags().GetStringSlice("kinds")
	notifyURL, _ := cmd.Flags().GetString("notify-url")
	outputPath, _ := cmd.Flags().GetString("output")
	noInteractive, _ := cmd.Flags().GetBool("no-interactive")

	if !noInteractive {
		if name == "" {
			if err := huh.NewInput().
				Title("Pipeline name").
				Value(&name).
				Run(); err != nil {
				return err
			}
		}

		if len(kinds) == 0 {
			if err := huh.NewMultiSelect[string]().
				Title("Select stages to include").
				Options(
					huh.NewOption("Tests", config.KindTest).Selected(true),
					huh.NewOption("Linting", config.KindLint).Selected(true),
					huh.NewOption("Build", config.KindBuild),
					huh.NewOption("Security scan", config.KindScan),
				).
				Value(&kinds).
				Run(); err != nil {
				return err
			}
		}

		if notifyURL == "" {
			var wantNotify string
			if err := huh.NewSelect[string]().
				Title("Deliver gate reports to an HTTP endpoint?").
				Options(
					huh.NewOption("No", "no"),
					huh.NewOption("Yes", "yes"),
				).
				Value(&wantNotify).
				Run(); err != nil {
				return err
			}
			if wantNotify == "yes" {
				if err := huh.NewInput().
					Title("Endpoint URL").
					Value(&notifyURL).
					Run(); err != nil {
					return err
				}
			}
		}
	}

	if name == "" {
		name = "my-pipeline"
	}
	if len(kinds) == 0 {
		kinds = []string{config.KindTest, config.KindLint}
	}

	pipeline, err := scaffoldPipeline(name, kinds, notifyURL)
	if err != nil {
		return err
	}

	if err := savePipeline(pipeline, outputPath); err != nil {
		return fmt.Errorf("failed to save pipeline: %w", err)
	}

	fmt.Printf("✓ Pipeline saved to %s\n", outputPath)
	fmt.Printf("Edit the stage commands, then run 'pipegate run %s'.\n", outputPath)
	return nil
}

// scaffoldPipeline assembles a starter pipeline with one stage per
// selected kind.
func scaffoldPipeline(name string, kinds []string, notifyURL string) (*config.Pipeline, error) {
	pipeline := &config.Pipeline{
		Metadata: config.PipelineMetadata{
			Name:        name,
			Version:     "0.1.0",
			Description: "Generated by pipegate init",
		},
		Stages: config.StagesSection{
			Defaults: &config.StageDefaults{
				Timeout: 10 * time.Minute,
			},
		},
	}

	for _, kind := range kinds {
		stage, ok := starterStages[kind]
		if !ok {
			return nil, fmt.Errorf("unknown stage kind: %s", kind)
		}
		if err := pipeline.AddStage(stage); err != nil {
			return nil, err
		}
	}

	if notifyURL != "" {
		pipeline.Notify = &config.NotifySettings{URL: notifyURL}
	}

	if err := config.Validate(pipeline); err != nil {
		return nil, fmt.Errorf("generated pipeline is invalid: %w", err)
	}
	return pipeline, nil
}

// starterStages holds the placeholder stage per kind.
var starterStages = map[string]config.Stage{
	config.KindTest: {
		ID:              "test",
		Name:            "Unit tests",
		Kind:            config.KindTest,
		Command:         "go",
		Args:            []string{"test", "-cover", "./..."},
		CoveragePattern: `coverage: ([0-9.]+)%`,
	},
	config.KindLint: {
		ID:      "lint",
		Name:    "Linting",
		Kind:    config.KindLint,
		Command: "golangci-lint",
		Args:    []string{"run"},
	},
	config.KindBuild: {
		ID:      "build",
		Name:    "Build",
		Kind:    config.KindBuild,
		Command: "go",
		Args:    []string{"build", "./..."},
	},
	config.KindScan: {
		ID:       "scan",
		Name:     "Security scan",
		Kind:     config.KindScan,
		Command:  "trivy",
		Args:     []string{"fs", "."},
		Optional: true,
	},
}

func savePipeline(pipeline *config.Pipeline, path string) error {
	data, err := yaml.Marshal(pipeline)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644) //nolint:gosec // G306: pipeline definitions are not secrets
}
