// Package gate implements the quality gate: it combines the terminal
// statuses of upstream pipeline stages into a single pass/fail/warn verdict
// with a per-stage summary. The evaluator is a pure function over its
// inputs; it never errors, never blocks, and holds no state between calls.
package gate

import (
	"github.com/pipegate-dev/pipegate/internal/domain/values"
)

// StageResult is one input row: the terminal outcome of a named upstream stage.
type StageResult struct {
	Name     string        `json:"name" yaml:"name"`
	Status   values.Status `json:"status" yaml:"status"`
	Required bool          `json:"required" yaml:"required"`
}

// SummaryLine is one output row. Blocked is true when this stage's status
// caused the overall verdict to be fail.
type SummaryLine struct {
	Name    string        `json:"name" yaml:"name"`
	Status  values.Status `json:"status" yaml:"status"`
	Blocked bool          `json:"blocked" yaml:"blocked"`
}

// Policy configures how the gate interprets stage outcomes.
type Policy struct {
	// RequiredStages lists stage names the caller expects to see. A listed
	// stage entirely absent from the input contributes as a failure.
	RequiredStages []string `json:"required_stages,omitempty" yaml:"required_stages,omitempty"`

	// SkippedIsPass treats a skipped required stage as a valid pass instead
	// of raising a warn.
	SkippedIsPass bool `json:"skipped_is_pass,omitempty" yaml:"skipped_is_pass,omitempty"`

	// Strict promotes a skipped required stage from warn to fail.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// Verdict is the evaluator's output. Summary preserves input order with
// exactly one line per input stage; synthesized lines for expected stages
// missing from the input follow, in policy order. Blocking lists the stage
// names that caused Overall to be fail, deduplicated, in summary order.
type Verdict struct {
	Overall  values.Verdict `json:"overall" yaml:"overall"`
	Summary  []SummaryLine  `json:"summary" yaml:"summary"`
	Blocking []string       `json:"blocking" yaml:"blocking"`
}

// Blocks reports whether the named stage blocked the gate.
func (v Verdict) Blocks(name string) bool {
	for _, b := range v.Blocking {
		if b == name {
			return true
		}
	}
	return false
}

// Evaluate combines stage results into a gate verdict.
//
// Decision rules, in tie-break order:
//  1. Any required stage with status failure or cancelled blocks the gate
//     and Overall is fail. All blocking stages are collected; the gate
//     never stops at the first failure, so one verdict carries the
//     complete failure set.
//  2. A required stage listed in the policy but absent from the input
//     contributes as a failure (fail-closed on missing data).
//  3. Otherwise a required stage that was skipped yields warn, unless the
//     policy says skipped counts as pass. Under Policy.Strict the skip
//     blocks instead. A warn never populates Blocking.
//  4. Otherwise the verdict is pass. An empty input is a vacuous pass.
//
// Optional stage outcomes are recorded in the summary but never change
// Overall. A status outside the closed enumeration is normalized to
// failure before any rule applies. Evaluate is idempotent: identical input
// always produces an identical verdict.
func Evaluate(results []StageResult, policy Policy) Verdict {
	verdict := Verdict{
		Overall:  values.VerdictPass,
		Summary:  make([]SummaryLine, 0, len(results)),
		Blocking: []string{},
	}

	warn := false
	present := make(map[string]bool, len(results))

	for _, r := range results {
		status := r.Status
		if status.Validate() != nil {
			// Unknown token: fail-closed, never fail-open
			status = values.StatusFailure
		}
		present[r.Name] = true

		blocked := false
		if r.Required {
			switch {
			case status.IsFailure():
				blocked = true
			case status.IsSkipped() && policy.Strict:
				blocked = true
			case status.IsSkipped() && !policy.SkippedIsPass:
				warn = true
			}
		}

		if blocked {
			verdict.Blocking = appendUnique(verdict.Blocking, r.Name)
		}
		verdict.Summary = append(verdict.Summary, SummaryLine{
			Name:    r.Name,
			Status:  status,
			Blocked: blocked,
		})
	}

	// Expected required stages with no reported outcome contribute as
	// failures so the report stays complete and the gate stays closed.
	for _, name := range policy.RequiredStages {
		if present[name] {
			continue
		}
		verdict.Summary = append(verdict.Summary, SummaryLine{
			Name:    name,
			Status:  values.StatusFailure,
			Blocked: true,
		})
		verdict.Blocking = appendUnique(verdict.Blocking, name)
	}

	switch {
	case len(verdict.Blocking) > 0:
		verdict.Overall = values.VerdictFail
	case warn:
		verdict.Overall = values.VerdictWarn
	}

	return verdict
}

func appendUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}
