package values

import (
	"fmt"
	"regexp"
	"strings"
)

// Stage IDs must be alphanumeric with dashes and underscores
var stageIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// StageID uniquely identifies a stage within a pipeline.
// Enforces non-empty, trimmed, format-valid identifiers.
type StageID struct {
	value string
}

// NewStageID creates a new StageID with validation
func NewStageID(id string) (StageID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return StageID{}, fmt.Errorf("stage ID cannot be empty")
	}
	if !stageIDPattern.MatchString(id) {
		return StageID{}, fmt.Errorf("stage ID %q is invalid (must be alphanumeric with dashes/underscores)", id)
	}
	return StageID{value: id}, nil
}

// MustNewStageID creates a StageID or panics (for tests/constants)
func MustNewStageID(id string) StageID {
	sid, err := NewStageID(id)
	if err != nil {
		panic(err)
	}
	return sid
}

// String returns the string representation
func (s StageID) String() string {
	return s.value
}

// IsEmpty returns true if this is the zero value
func (s StageID) IsEmpty() bool {
	return s.value == ""
}

// Equals checks if two StageIDs are equal
func (s StageID) Equals(other StageID) bool {
	return s.value == other.value
}

// MarshalJSON implements json.Marshaler
func (s StageID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (s *StageID) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) < 2 {
		return fmt.Errorf("invalid stage ID JSON")
	}
	raw = raw[1 : len(raw)-1]

	id, err := NewStageID(raw)
	if err != nil {
		return err
	}
	*s = id
	return nil
}
