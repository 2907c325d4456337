package state

import (
	"strings"
	"time"
)

// TypeSeparator joins module name and action name in a mutation type.
const TypeSeparator = "/"

// Mutation is an immutable record of one applied state transition.
// Retained only inside history entries and the journal after application.
type Mutation struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	Payload   Value     `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user,omitempty"`
	Persist   bool      `json:"persist"`
	Sync      bool      `json:"sync"`
}

// SplitType splits "module/ACTION" into its module and action parts.
// Reports false when the type does not contain exactly one separator
// with non-empty parts on both sides.
func SplitType(mutationType string) (module, action string, ok bool) {
	module, action, found := strings.Cut(mutationType, TypeSeparator)
	if !found || module == "" || action == "" || strings.Contains(action, TypeSeparator) {
		return "", "", false
	}
	return module, action, true
}

// JoinType builds a mutation type from module and action names.
func JoinType(module, action string) string {
	return module + TypeSeparator + action
}

// CommitOptions tune a single commit. The zero value enables everything.
type CommitOptions struct {
	// SkipPersist suppresses the persistence middleware for this commit.
	SkipPersist bool
	// SkipSync keeps the mutation out of the outbound sync queue. Set on
	// every remotely-originated mutation to avoid echo loops.
	SkipSync bool
	// User attributes the mutation to a user id.
	User string
}

// Getter computes a derived value from a module's sub-state. It receives
// the module's current sub-state, the whole tree, and a resolver for
// cross-module getters.
type Getter func(sub Value, tree Tree, resolve GetterResolver) Value

// GetterResolver evaluates another module's named getter.
type GetterResolver func(module, getter string) (Value, error)
