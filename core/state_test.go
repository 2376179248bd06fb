package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTempKey(t *testing.T) {
	assert.True(t, IsTempKey("temp:scratch"))
	assert.True(t, IsTempKey(StateKeyLoopIteration))
	assert.False(t, IsTempKey("app:config"))
	assert.False(t, IsTempKey("user:name"))
	assert.False(t, IsTempKey("plain"))
}

func TestSplitStateDelta(t *testing.T) {
	app, user, session := SplitStateDelta(map[string]any{
		"app:theme":    "dark",
		"user:name":    "alice",
		"temp:scratch": 42,
		"counter":      7,
		"active_agent": "Billing",
	})

	assert.Equal(t, map[string]any{"theme": "dark"}, app)
	assert.Equal(t, map[string]any{"name": "alice"}, user)
	assert.Equal(t, map[string]any{"counter": 7, "active_agent": "Billing"}, session)
}

func TestSplitStateDelta_DropsTempKeys(t *testing.T) {
	app, user, session := SplitStateDelta(map[string]any{
		"temp:a": 1,
		"temp:b": 2,
	})

	assert.Empty(t, app)
	assert.Empty(t, user)
	assert.Empty(t, session)
}

func TestMergeScopes(t *testing.T) {
	merged := MergeScopes(
		map[string]any{"theme": "dark"},
		map[string]any{"name": "alice"},
		map[string]any{"counter": 7},
	)

	assert.Equal(t, map[string]any{
		"app:theme": "dark",
		"user:name": "alice",
		"counter":   7,
	}, merged)
}

func TestMergeScopes_RoundTripsSplit(t *testing.T) {
	delta := map[string]any{
		"app:theme": "dark",
		"user:name": "alice",
		"counter":   7,
	}

	app, user, session := SplitStateDelta(delta)

	assert.Equal(t, delta, MergeScopes(app, user, session))
}
