package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenttree/agenttree/core"
)

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("be helpful")
	assert.True(t, inst.IsStatic())

	out, err := inst.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "be helpful", out)
}

func TestInstruction_Provider(t *testing.T) {
	inst := NewInstructionFromFunc(func(ictx *core.InvocationContext) (string, error) {
		return "dynamic for " + ictx.InvocationID, nil
	})
	assert.False(t, inst.IsStatic())

	ictx, _ := newRunContext(t, nil)
	out, err := inst.Resolve(ictx)
	require.NoError(t, err)
	assert.Equal(t, "dynamic for inv-1", out)
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := NewInstructionFromFunc(func(ictx *core.InvocationContext) (string, error) {
		return "", errors.New("no instruction")
	})

	ictx, _ := newRunContext(t, nil)
	_, err := inst.Resolve(ictx)
	assert.Error(t, err)
}
