// Package values contains domain value objects that encapsulate
// primitive types with validation and such.
package values

import "fmt"

// Status represents the terminal outcome of one pipeline stage.
type Status string

const (
	// StatusSuccess indicates the stage's tool exited cleanly
	StatusSuccess Status = "success"
	// StatusFailure indicates the stage's tool failed or crashed
	StatusFailure Status = "failure"
	// StatusCancelled indicates the stage was cancelled before producing a signal
	StatusCancelled Status = "cancelled"
	// StatusSkipped indicates the stage never ran (dependency failure or filtered)
	StatusSkipped Status = "skipped"
)

// String returns the status token.
func (s Status) String() string {
	return string(s)
}

// ParseStatus maps a status token to a Status. Unknown tokens resolve to
// StatusFailure with ok=false: a token we cannot interpret must never
// let a stage pass the gate.
func ParseStatus(s string) (Status, bool) {
	status := Status(s)
	if err := status.Validate(); err != nil {
		return StatusFailure, false
	}
	return status, true
}

// Precedence returns the numeric precedence of this status.
// Higher values indicate higher priority in aggregation.
//
// Precedence: Failure (3) > Cancelled (2) > Skipped (1) > Success (0)
func (s Status) Precedence() int {
	switch s {
	case StatusFailure:
		return 3
	case StatusCancelled:
		return 2
	case StatusSkipped:
		return 1
	case StatusSuccess:
		return 0
	default:
		return -1
	}
}

// IsFailure returns true if this status gives no positive signal.
// A cancelled stage counts: it proved nothing and must not silently pass.
func (s Status) IsFailure() bool {
	return s == StatusFailure || s == StatusCancelled
}

// IsSuccess returns true if this status represents success
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsSkipped returns true if this status represents a skip
func (s Status) IsSkipped() bool {
	return s == StatusSkipped
}

// Validate returns an error if the status value is invalid
func (s Status) Validate() error {
	switch s {
	case StatusSuccess, StatusFailure, StatusCancelled, StatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid status: %s", s)
	}
}
