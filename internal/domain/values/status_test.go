package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseStatus(t *testing.T) {
	tests := []struct {
		input      string
		expected   Status
		expectedOK bool
	}{
		{"success", StatusSuccess, true},
		{"failure", StatusFailure, true},
		{"cancelled", StatusCancelled, true},
		{"skipped", StatusSkipped, true},
		{"", StatusFailure, false},
		{"passed", StatusFailure, false},
		{"SUCCESS", StatusFailure, false},
		{"green", StatusFailure, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, ok := ParseStatus(tt.input)
			assert.Equal(t, tt.expected, status)
			assert.Equal(t, tt.expectedOK, ok)
		})
	}
}

func Test_Status_Precedence(t *testing.T) {
	assert.Greater(t, StatusFailure.Precedence(), StatusCancelled.Precedence())
	assert.Greater(t, StatusCancelled.Precedence(), StatusSkipped.Precedence())
	assert.Greater(t, StatusSkipped.Precedence(), StatusSuccess.Precedence())
	assert.Equal(t, -1, Status("bogus").Precedence())
}

func Test_Status_Predicates(t *testing.T) {
	assert.True(t, StatusFailure.IsFailure())
	assert.True(t, StatusCancelled.IsFailure())
	assert.False(t, StatusSkipped.IsFailure())
	assert.True(t, StatusSuccess.IsSuccess())
	assert.True(t, StatusSkipped.IsSkipped())
}

func Test_Status_Validate(t *testing.T) {
	for _, s := range []Status{StatusSuccess, StatusFailure, StatusCancelled, StatusSkipped} {
		assert.NoError(t, s.Validate())
	}
	assert.Error(t, Status("error").Validate())
	assert.Error(t, Status("").Validate())
}
