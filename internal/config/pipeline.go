// Package config provides pipeline configuration loading and validation.
// It handles YAML parsing, variable substitution, and pipeline validation.
package config

import (
	"fmt"
	"time"

	"github.com/pipegate-dev/pipegate/internal/domain/values"
)

// Stage kinds name the class of external tool a stage invokes. The tool
// itself stays opaque: pipegate only sees its exit status and output.
const (
	KindTest   = "test"
	KindLint   = "lint"
	KindBuild  = "build"
	KindScan   = "scan"
	KindCustom = "custom"
)

// Pipeline represents a complete pipeline definition.
// Pipelines declare the stages whose terminal statuses feed the quality gate.
type Pipeline struct {
	Metadata PipelineMetadata       `yaml:"pipeline"`
	Vars     map[string]interface{} `yaml:"vars,omitempty"`
	Stages   StagesSection          `yaml:"stages"`
	Notify   *NotifySettings        `yaml:"notify,omitempty"`
}

// PipelineMetadata contains metadata about the pipeline.
type PipelineMetadata struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

// StagesSection contains stage defaults and individual stages.
type StagesSection struct {
	Defaults *StageDefaults `yaml:"defaults,omitempty"`
	Items    []Stage        `yaml:"items"`
}

// StageDefaults defines default values applied to all stages.
// Individual stages can override these defaults.
type StageDefaults struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Retry   *RetrySpec    `yaml:"retry,omitempty"`
}

// Stage represents one external tool invocation whose terminal status
// feeds the gate. A stage is required unless marked optional.
type Stage struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Kind        string            `yaml:"kind,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args,omitempty"`
	Dir         string            `yaml:"dir,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Optional    bool              `yaml:"optional,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
	Retry       *RetrySpec        `yaml:"retry,omitempty"`

	// CoveragePattern extracts a numeric metric from the tool's output.
	// The first capture group must match a number; it is exposed to
	// expect expressions as "coverage".
	CoveragePattern string `yaml:"coverage_pattern,omitempty"`

	// Expect reduces tool output to pass/fail before the gate sees the
	// stage. Expressions see exit_code, duration_ms, coverage and output.
	Expect []string `yaml:"expect,omitempty"`
}

// RetrySpec configures retries for a stage's tool invocation.
type RetrySpec struct {
	Attempts int           `yaml:"attempts"`
	Backoff  string        `yaml:"backoff,omitempty"` // none, linear, exponential
	Delay    time.Duration `yaml:"delay,omitempty"`
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`
}

// NotifySettings configures report delivery for this pipeline.
type NotifySettings struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// IsRequired reports whether this stage's failure must fail the gate.
func (s *Stage) IsRequired() bool {
	return !s.Optional
}

// Validate checks the consistency of the stage.
func (s *Stage) Validate() error {
	if _, err := values.NewStageID(s.ID); err != nil {
		return fmt.Errorf("invalid stage ID %q: %w", s.ID, err)
	}
	if s.Name == "" {
		return fmt.Errorf("stage name cannot be empty (id: %s)", s.ID)
	}
	if s.Command == "" {
		return fmt.Errorf("stage command cannot be empty (id: %s)", s.ID)
	}
	if s.Kind != "" {
		switch s.Kind {
		case KindTest, KindLint, KindBuild, KindScan, KindCustom:
		default:
			return fmt.Errorf("invalid stage kind %q (id: %s)", s.Kind, s.ID)
		}
	}
	if s.Retry != nil && s.Retry.Attempts < 0 {
		return fmt.Errorf("retry attempts cannot be negative (id: %s)", s.ID)
	}
	return nil
}

// HasDependency checks if the stage depends on the specified stage ID.
func (s *Stage) HasDependency(stageID string) bool {
	for _, dep := range s.DependsOn {
		if dep == stageID {
			return true
		}
	}
	return false
}

// GetEffectiveTimeout returns the stage's timeout or the default if not set.
func (s *Stage) GetEffectiveTimeout(defaultTimeout time.Duration) time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return defaultTimeout
}

// GetEffectiveKind returns the stage's kind, defaulting to custom.
func (s *Stage) GetEffectiveKind() string {
	if s.Kind == "" {
		return KindCustom
	}
	return s.Kind
}

// AddStage adds a stage to the pipeline with validation.
func (p *Pipeline) AddStage(stage Stage) error {
	if err := stage.Validate(); err != nil {
		return err
	}
	for _, existing := range p.Stages.Items {
		if existing.ID == stage.ID {
			return fmt.Errorf("duplicate stage ID: %s", stage.ID)
		}
	}
	p.Stages.Items = append(p.Stages.Items, stage)
	return nil
}

// GetStage returns a pointer to the stage with the given ID, or nil if not found.
func (p *Pipeline) GetStage(id string) *Stage {
	for i := range p.Stages.Items {
		if p.Stages.Items[i].ID == id {
			return &p.Stages.Items[i]
		}
	}
	return nil
}

// HasStage checks if a stage with the given ID exists in the pipeline.
func (p *Pipeline) HasStage(id string) bool {
	return p.GetStage(id) != nil
}

// StageCount returns the number of stages in the pipeline.
func (p *Pipeline) StageCount() int {
	return len(p.Stages.Items)
}

// RequiredStageIDs returns the IDs of all required stages in definition
// order. This is the gate policy's expected-stage list.
func (p *Pipeline) RequiredStageIDs() []string {
	ids := make([]string, 0, len(p.Stages.Items))
	for _, stage := range p.Stages.Items {
		if stage.IsRequired() {
			ids = append(ids, stage.ID)
		}
	}
	return ids
}

// ApplyDefaults applies stage defaults to all stages in the pipeline.
// Individual stage values take precedence over defaults.
func (p *Pipeline) ApplyDefaults() {
	if p.Stages.Defaults == nil {
		return
	}

	defaults := p.Stages.Defaults

	for i := range p.Stages.Items {
		stage := &p.Stages.Items[i]

		if stage.Timeout == 0 && defaults.Timeout != 0 {
			stage.Timeout = defaults.Timeout
		}
		if stage.Retry == nil && defaults.Retry != nil {
			retry := *defaults.Retry
			stage.Retry = &retry
		}
	}
}
