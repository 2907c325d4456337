package state

import "context"

// Module is the contract every state slice implements. Registration is
// one-shot at boot; the capability set beyond Mutate is discovered by
// interface assertion, not ad hoc property checks.
type Module interface {
	// Name returns the module's tree key. Must be stable and unique.
	Name() string

	// InitialState returns a fresh copy of the module's boot state.
	// Callers own the returned value.
	InitialState() Value

	// Mutate applies one named mutation to the module's sub-state and
	// returns the resulting sub-state. The sub argument is an exclusive
	// draft: the manager cloned the tree before the call, so handlers may
	// mutate it in place and return it. Unknown actions return an error.
	Mutate(action string, sub Value, payload Value) (Value, error)
}

// ActionContext is the surface handed to action handlers. Handlers must
// route every state change through Commit or Dispatch, never touch the
// tree directly.
type ActionContext interface {
	Commit(ctx context.Context, mutationType string, payload Value) error
	Dispatch(ctx context.Context, actionType string, payload Value) (Value, error)
	Get(path string) Value
	Getter(module, name string) (Value, error)
}

// Actor is implemented by modules with asynchronous action handlers.
type Actor interface {
	Action(ctx context.Context, name string, store ActionContext, payload Value) (Value, error)
}

// GetterProvider is implemented by modules exposing computed getters.
type GetterProvider interface {
	Getters() map[string]Getter
}

// Persistable is implemented by modules that survive restarts.
type Persistable interface {
	// ShouldPersist gates the module in or out of the persisted envelope.
	ShouldPersist() bool
	// PersistedState filters the sub-state down to what gets stored.
	PersistedState(sub Value) Value
	// OnHydrate runs after the persisted slice was merged back at boot.
	OnHydrate(sub Value)
}

// Validator is implemented by modules that vet mutations before middleware
// sees them committed. Returning an error vetoes the commit and rolls the
// whole tree back.
type Validator interface {
	ValidateMutation(m Mutation, sub, prev Value) error
}

// Initializer is implemented by modules needing one-time setup at
// registration.
type Initializer interface {
	Init(ctx context.Context) error
}
