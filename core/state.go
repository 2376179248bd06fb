package core

import "strings"

// State key prefixes select the scope a mutation lands in. Unprefixed keys
// belong to the session; app and user scopes are shared across sessions of
// the same application or user; temp keys live only for the current
// invocation and are never persisted.
const (
	StatePrefixApp  = "app:"
	StatePrefixUser = "user:"
	StatePrefixTemp = "temp:"
)

// Well-known state keys.
const (
	// StateKeyActiveAgent records which agent currently owns the
	// conversation. The runner reads it to resume routing and writes it on
	// transfer.
	StateKeyActiveAgent = "active_agent"

	// StateKeyLoopIteration is the ephemeral iteration counter maintained by
	// loop agents.
	StateKeyLoopIteration = "temp:loop_iteration"
)

// IsTempKey reports whether a key belongs to the ephemeral temp scope.
func IsTempKey(key string) bool { return strings.HasPrefix(key, StatePrefixTemp) }

// SplitStateDelta partitions a raw delta into its persistence scopes. Prefixes
// are stripped from app and user keys; temp keys are dropped entirely. Session
// keys keep their names.
func SplitStateDelta(delta map[string]any) (app, user, session map[string]any) {
	app = map[string]any{}
	user = map[string]any{}
	session = map[string]any{}
	for k, v := range delta {
		switch {
		case strings.HasPrefix(k, StatePrefixApp):
			app[strings.TrimPrefix(k, StatePrefixApp)] = v
		case strings.HasPrefix(k, StatePrefixUser):
			user[strings.TrimPrefix(k, StatePrefixUser)] = v
		case strings.HasPrefix(k, StatePrefixTemp):
			// never persisted
		default:
			session[k] = v
		}
	}
	return app, user, session
}

// MergeScopes assembles the merged read view of state: session keys as-is,
// app and user keys re-prefixed. Session keys never collide with scoped keys
// because the prefixes are reserved.
func MergeScopes(app, user, session map[string]any) map[string]any {
	merged := make(map[string]any, len(app)+len(user)+len(session))
	for k, v := range app {
		merged[StatePrefixApp+k] = v
	}
	for k, v := range user {
		merged[StatePrefixUser+k] = v
	}
	for k, v := range session {
		merged[k] = v
	}
	return merged
}
