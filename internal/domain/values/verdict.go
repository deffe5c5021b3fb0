package values

import "fmt"

// Verdict represents the aggregate gate decision derived from all stage outcomes.
type Verdict string

const (
	// VerdictPass indicates every required stage gave a positive signal
	VerdictPass Verdict = "pass"
	// VerdictFail indicates at least one required stage blocked the gate
	VerdictFail Verdict = "fail"
	// VerdictWarn indicates a required stage was skipped without being marked optional
	VerdictWarn Verdict = "warn"
)

// String returns the verdict token.
func (v Verdict) String() string {
	return string(v)
}

// Precedence returns the numeric precedence of this verdict.
//
// Precedence: Fail (2) > Warn (1) > Pass (0)
func (v Verdict) Precedence() int {
	switch v {
	case VerdictFail:
		return 2
	case VerdictWarn:
		return 1
	case VerdictPass:
		return 0
	default:
		return -1
	}
}

// Combine returns the more severe of two verdicts.
func (v Verdict) Combine(other Verdict) Verdict {
	if other.Precedence() > v.Precedence() {
		return other
	}
	return v
}

// IsBlocking returns true if this verdict should stop a pipeline from progressing.
// A warn flags attention but never blocks.
func (v Verdict) IsBlocking() bool {
	return v == VerdictFail
}

// Validate returns an error if the verdict value is invalid
func (v Verdict) Validate() error {
	switch v {
	case VerdictPass, VerdictFail, VerdictWarn:
		return nil
	default:
		return fmt.Errorf("invalid verdict: %s", v)
	}
}
