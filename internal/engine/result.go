// Package engine provides pipeline execution orchestration for pipegate.
// It runs stage commands, applies expectations, and aggregates results
// into a gate verdict.
package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/gate"
)

// RunResult represents the complete result of executing a pipeline.
type RunResult struct {
	PipelineName    string         `json:"pipeline_name" yaml:"pipeline_name"`
	PipelineVersion string         `json:"pipeline_version" yaml:"pipeline_version"`
	RunID           values.RunID   `json:"run_id" yaml:"run_id"`
	StartTime       time.Time      `json:"start_time" yaml:"start_time"`
	EndTime         time.Time      `json:"end_time" yaml:"end_time"`
	Duration        time.Duration  `json:"duration_ms" yaml:"duration_ms"`
	Stages          []StageOutcome `json:"stages" yaml:"stages"`
	Summary         ResultSummary  `json:"summary" yaml:"summary"`
	Gate            gate.Verdict   `json:"gate" yaml:"gate"`
	mu              sync.Mutex     // Protects Stages for concurrent AddStageOutcome calls
}

// StageOutcome represents the result of executing a single stage.
type StageOutcome struct {
	Index        int                 `json:"-" yaml:"-"`
	ID           string              `json:"id" yaml:"id"`
	Name         string              `json:"name" yaml:"name"`
	Kind         string              `json:"kind,omitempty" yaml:"kind,omitempty"`
	Required     bool                `json:"required" yaml:"required"`
	Status       values.Status       `json:"status" yaml:"status"`
	ExitCode     int                 `json:"exit_code" yaml:"exit_code"`
	Attempts     int                 `json:"attempts" yaml:"attempts"`
	Output       string              `json:"output,omitempty" yaml:"output,omitempty"`
	Coverage     *float64            `json:"coverage,omitempty" yaml:"coverage,omitempty"`
	Expectations []ExpectationResult `json:"expectations,omitempty" yaml:"expectations,omitempty"`
	Message      string              `json:"message,omitempty" yaml:"message,omitempty"`
	SkipReason   string              `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`
	Duration     time.Duration       `json:"duration_ms" yaml:"duration_ms"`
}

// ExpectationResult records the evaluation of a single expect expression.
type ExpectationResult struct {
	Expression string `json:"expression" yaml:"expression"`
	Passed     bool   `json:"passed" yaml:"passed"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ResultSummary provides aggregate statistics about the run.
type ResultSummary struct {
	TotalStages     int `json:"total_stages" yaml:"total_stages"`
	SucceededStages int `json:"succeeded_stages" yaml:"succeeded_stages"`
	FailedStages    int `json:"failed_stages" yaml:"failed_stages"`
	CancelledStages int `json:"cancelled_stages" yaml:"cancelled_stages"`
	SkippedStages   int `json:"skipped_stages" yaml:"skipped_stages"`
}

// NewRunResult creates a new run result with a fresh run ID.
func NewRunResult(pipelineName, pipelineVersion string) *RunResult {
	return &RunResult{
		PipelineName:    pipelineName,
		PipelineVersion: pipelineVersion,
		RunID:           values.NewRunID(),
		StartTime:       time.Now(),
		Stages:          make([]StageOutcome, 0),
	}
}

// AddStageOutcome adds a stage outcome to the run result.
// Thread-safe for concurrent calls during parallel execution.
func (r *RunResult) AddStageOutcome(outcome StageOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages = append(r.Stages, outcome)
}

// GetStageStatus looks up the status of a completed stage by ID.
// Used for dependency checks between stages.
func (r *RunResult) GetStageStatus(id string) (values.Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, outcome := range r.Stages {
		if outcome.ID == id {
			return outcome.Status, true
		}
	}
	return "", false
}

// StageResults converts the recorded outcomes into the gate evaluator's
// input rows, in pipeline definition order.
func (r *RunResult) StageResults() []gate.StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]gate.StageResult, 0, len(r.Stages))
	for _, outcome := range r.Stages {
		results = append(results, gate.StageResult{
			Name:     outcome.ID,
			Status:   outcome.Status,
			Required: outcome.Required,
		})
	}
	return results
}

// Finalize completes the run result: restores pipeline definition order
// (parallel workers append out of order), sets the end time, and
// calculates the summary.
func (r *RunResult) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.Stages, func(i, j int) bool {
		return r.Stages[i].Index < r.Stages[j].Index
	})

	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.calculateSummary()
}

// calculateSummary computes summary statistics from stage outcomes.
// Caller must hold r.mu.
func (r *RunResult) calculateSummary() {
	r.Summary = ResultSummary{
		TotalStages: len(r.Stages),
	}

	for _, outcome := range r.Stages {
		switch outcome.Status {
		case values.StatusSuccess:
			r.Summary.SucceededStages++
		case values.StatusFailure:
			r.Summary.FailedStages++
		case values.StatusCancelled:
			r.Summary.CancelledStages++
		case values.StatusSkipped:
			r.Summary.SkippedStages++
		}
	}
}
