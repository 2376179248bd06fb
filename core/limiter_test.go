package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLimiter_Ceiling(t *testing.T) {
	ml := NewModelLimiter(2)

	require.NoError(t, ml.Increment())
	require.NoError(t, ml.Increment())
	assert.Error(t, ml.Increment())
	assert.Equal(t, 3, ml.Count())
}

func TestModelLimiter_Unlimited(t *testing.T) {
	ml := NewModelLimiter(0)

	for i := 0; i < 500; i++ {
		require.NoError(t, ml.Increment())
	}
	assert.Equal(t, -1, ml.Remaining())
}

func TestModelLimiter_Remaining(t *testing.T) {
	ml := NewModelLimiter(3)
	assert.Equal(t, 3, ml.Remaining())

	require.NoError(t, ml.Increment())
	assert.Equal(t, 2, ml.Remaining())
}
