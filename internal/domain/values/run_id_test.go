package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewRunID_Unique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	assert.False(t, a.IsZero())
	assert.False(t, a.Equals(b))
}

func Test_ParseRunID(t *testing.T) {
	id := NewRunID()

	parsed, err := ParseRunID(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equals(parsed))

	_, err = ParseRunID("not-a-uuid")
	assert.Error(t, err)
}

func Test_RunID_JSONRoundTrip(t *testing.T) {
	id := NewRunID()

	data, err := id.MarshalJSON()
	require.NoError(t, err)

	var decoded RunID
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.True(t, id.Equals(decoded))
}
