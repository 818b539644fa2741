package posegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationBatch(t *testing.T) {
	b := NewVerificationBatch()
	assert.True(t, b.IsEmpty())

	require.NoError(t, b.Append("r1", 3, 1, 3))
	require.NoError(t, b.Append("", 2, 1))
	assert.Equal(t, "r1", b.RobotName())
	assert.Equal(t, []int{3, 1, 2}, b.SubmapIDs())

	err := b.Append("r2", 9)
	assert.ErrorIs(t, err, ErrIdentityConflict)
	assert.EqualError(t, err, "appending submaps of r2: identity conflict: batch belongs to r1")
	assert.Equal(t, []int{3, 1, 2}, b.SubmapIDs(), "a conflicting append leaves the batch unchanged")

	ids := b.SubmapIDs()
	ids[0] = 100
	assert.Equal(t, 3, b.SubmapIDs()[0])

	b.Reset()
	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.RobotName())

	require.NoError(t, b.Append("r2", 9))
	assert.Equal(t, "r2", b.RobotName())
	assert.Equal(t, []int{9}, b.SubmapIDs())
}
