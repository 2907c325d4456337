package events

import (
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// StoreEvent is implemented by every event the store publishes. Subscribing
// to StoreEvent receives the full stream.
type StoreEvent interface {
	EventName() string
}

// MutationApplied is published after every successful commit, once the full
// middleware chain ran.
type MutationApplied struct {
	Mutation state.Mutation
	Duration time.Duration
}

func (MutationApplied) EventName() string { return "state:mutation" }

// ActionDispatched is published when a dispatched action settles, success
// or failure.
type ActionDispatched struct {
	ActionType string
	Err        error
	Duration   time.Duration
}

func (ActionDispatched) EventName() string { return "state:action" }

// Hydrated is published once at boot after persisted state was merged in.
type Hydrated struct {
	Modules   []string
	Timestamp time.Time
}

func (Hydrated) EventName() string { return "state:hydrated" }

// LoadingChanged tracks the additive per-action loading flags.
type LoadingChanged struct {
	ActionType string
	Active     bool
}

func (LoadingChanged) EventName() string { return "state:loading" }

// SyncStarted marks the beginning of one reconciliation cycle.
type SyncStarted struct {
	Cycle uint64
}

func (SyncStarted) EventName() string { return "state:syncStart" }

// SyncSucceeded marks a completed reconciliation cycle.
type SyncSucceeded struct {
	Cycle    uint64
	Applied  int // remote mutations applied locally
	Flushed  int // pending updates pushed to the server
	Duration time.Duration
}

func (SyncSucceeded) EventName() string { return "state:syncSuccess" }

// SyncFailed marks a failed cycle; the engine retries with backoff.
type SyncFailed struct {
	Cycle uint64
	Err   error
}

func (SyncFailed) EventName() string { return "state:syncError" }

// RealtimeApplied is published when a push-channel update was applied.
type RealtimeApplied struct {
	Mutation state.Mutation
	Origin   string
}

func (RealtimeApplied) EventName() string { return "state:realTimeUpdate" }

// CrossInstanceMerged is published when another instance's newer persisted
// snapshot was merged into the live tree.
type CrossInstanceMerged struct {
	Timestamp time.Time
	Modules   []string
}

func (CrossInstanceMerged) EventName() string { return "state:crossTabSync" }

// StoreReset is published after reset() restored every initial state.
type StoreReset struct{}

func (StoreReset) EventName() string { return "state:reset" }

// TimeTraveled is published after the live tree was replaced by a history
// snapshot.
type TimeTraveled struct {
	Index    int
	Mutation state.Mutation
}

func (TimeTraveled) EventName() string { return "state:timeTravel" }

// ErrorRecorded is published for every error funneled through the store's
// central error handler.
type ErrorRecorded struct {
	Scope string
	Err   error
}

func (ErrorRecorded) EventName() string { return "state:error" }
