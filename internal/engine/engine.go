package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/gate"
	"golang.org/x/sync/errgroup"
)

// ExecutionConfig controls execution behavior.
type ExecutionConfig struct {
	// MaxConcurrentStages limits parallel stage execution within a
	// dependency level (0 = no limit)
	MaxConcurrentStages int
	// Parallel enables parallel execution within a dependency level
	Parallel bool

	// IncludeStageIDs is exclusive: if set, only these stages run and
	// everything else is recorded as skipped
	IncludeStageIDs []string
	// ExcludeStageIDs are recorded as skipped
	ExcludeStageIDs []string

	// SkippedIsPass treats skipped required stages as passing instead
	// of degrading the verdict to warn
	SkippedIsPass bool
	// Strict escalates skipped required stages to a blocking failure
	Strict bool
}

// DefaultExecutionConfig returns sensible defaults for parallel execution.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxConcurrentStages: 4,
		Parallel:            true,
	}
}

// Engine coordinates pipeline execution: it schedules stages by
// dependency level, delegates each invocation to the stage executor,
// and evaluates the quality gate over the collected statuses.
type Engine struct {
	executor *StageExecutor
	config   ExecutionConfig
	logger   *slog.Logger
}

// New creates an execution engine.
func New(cfg ExecutionConfig, executor *StageExecutor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		executor: executor,
		config:   cfg,
		logger:   logger,
	}
}

// Execute runs a complete pipeline and returns the result, including
// the gate verdict. An error is returned only for structural problems
// (dependency cycles); individual tool failures are terminal statuses,
// not errors.
func (e *Engine) Execute(ctx context.Context, pipeline *config.Pipeline) (*RunResult, error) {
	result := NewRunResult(pipeline.Metadata.Name, pipeline.Metadata.Version)

	e.logger.Info("starting pipeline run",
		"pipeline", pipeline.Metadata.Name,
		"run_id", result.RunID.String(),
		"stages", pipeline.StageCount(),
	)

	levels, err := BuildStageDAG(pipeline.Stages.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to build stage dependency graph: %w", err)
	}

	// Stage index in definition order, so parallel results can be
	// restored to a deterministic summary order.
	indexByID := make(map[string]int, pipeline.StageCount())
	for i, stage := range pipeline.Stages.Items {
		indexByID[stage.ID] = i
	}

	for _, level := range levels {
		if e.config.Parallel && len(level.Stages) > 1 {
			g, levelCtx := errgroup.WithContext(ctx)
			if e.config.MaxConcurrentStages > 0 {
				g.SetLimit(e.config.MaxConcurrentStages)
			}

			for _, stage := range level.Stages {
				g.Go(func() error {
					result.AddStageOutcome(e.runStage(levelCtx, stage, indexByID[stage.ID], result))
					return nil // never fail fast: every stage reports a terminal status
				})
			}

			if err := g.Wait(); err != nil {
				return nil, fmt.Errorf("level %d execution failed: %w", level.Level, err)
			}
		} else {
			for _, stage := range level.Stages {
				result.AddStageOutcome(e.runStage(ctx, stage, indexByID[stage.ID], result))
			}
		}
	}

	result.Finalize()

	policy := gate.Policy{
		RequiredStages: pipeline.RequiredStageIDs(),
		SkippedIsPass:  e.config.SkippedIsPass,
		Strict:         e.config.Strict,
	}
	result.Gate = gate.Evaluate(result.StageResults(), policy)

	e.logger.Info("pipeline run finished",
		"pipeline", pipeline.Metadata.Name,
		"run_id", result.RunID.String(),
		"verdict", result.Gate.Overall.String(),
		"blocking", result.Gate.Blocking,
		"duration", result.Duration,
	)

	return result, nil
}

// runStage resolves filters and dependencies for one stage, then hands
// it to the executor. Stages held back by a filter or a non-successful
// dependency are recorded as skipped.
func (e *Engine) runStage(ctx context.Context, stage config.Stage, index int, result *RunResult) StageOutcome {
	if skip, reason := e.shouldSkip(stage); skip {
		e.logger.Debug("skipping stage", "stage", stage.ID, "reason", reason)
		return skippedOutcome(stage, index, reason)
	}

	for _, depID := range stage.DependsOn {
		depStatus, found := result.GetStageStatus(depID)
		if !found {
			return skippedOutcome(stage, index, fmt.Sprintf("dependency %s did not run", depID))
		}
		if depStatus != values.StatusSuccess {
			return skippedOutcome(stage, index, fmt.Sprintf("dependency %s has status %s", depID, depStatus))
		}
	}

	e.logger.Debug("running stage", "stage", stage.ID, "command", stage.Command)
	startTime := time.Now()
	outcome := e.executor.Execute(ctx, stage, index)
	e.logger.Debug("stage finished",
		"stage", stage.ID,
		"status", outcome.Status.String(),
		"exit_code", outcome.ExitCode,
		"attempts", outcome.Attempts,
		"duration", time.Since(startTime),
	)
	return outcome
}

// shouldSkip determines if a stage is held back by the configured filters.
func (e *Engine) shouldSkip(stage config.Stage) (bool, string) {
	// EXCLUSIVE MODE: --stage overrides all other filters
	if len(e.config.IncludeStageIDs) > 0 {
		if contains(e.config.IncludeStageIDs, stage.ID) {
			return false, ""
		}
		return true, "excluded by --stage filter"
	}

	if contains(e.config.ExcludeStageIDs, stage.ID) {
		return true, "excluded by --exclude-stage"
	}

	return false, ""
}

// skippedOutcome builds the terminal outcome for a stage that never ran.
func skippedOutcome(stage config.Stage, index int, reason string) StageOutcome {
	return StageOutcome{
		Index:      index,
		ID:         stage.ID,
		Name:       stage.Name,
		Kind:       stage.GetEffectiveKind(),
		Required:   stage.IsRequired(),
		Status:     values.StatusSkipped,
		SkipReason: reason,
		Message:    reason,
	}
}

// contains checks if a string is present in a slice.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
