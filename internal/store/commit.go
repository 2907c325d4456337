package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.ecosistema.dev/plataforma/statecore/internal/events"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/observability"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Commit applies a mutation synchronously. mutationType is
// "module/ACTION"; payload crosses module boundaries by value only.
//
// The mutation and the full middleware chain are atomic: if the module's
// Mutate or any middleware fails, the whole tree rolls back to its
// pre-commit snapshot and the error is returned.
func (m *Manager) Commit(ctx context.Context, mutationType string, payload state.Value) error {
	return m.commit(ctx, mutationType, payload, state.CommitOptions{})
}

// CommitWith is Commit with per-call options (skip persistence, skip sync
// enqueueing, override the attributed user).
func (m *Manager) CommitWith(ctx context.Context, mutationType string, payload state.Value, opts state.CommitOptions) error {
	return m.commit(ctx, mutationType, payload, opts)
}

func (m *Manager) commit(ctx context.Context, mutationType string, payload state.Value, opts state.CommitOptions) error {
	started := time.Now()

	moduleName, action, ok := state.SplitType(mutationType)
	if !ok {
		err := ferrors.ValidationError("malformed mutation type, want module/ACTION").
			WithContext("mutation", mutationType).
			Build()
		m.handleError(ctx, "commit", err)
		return err
	}

	user := opts.User
	if user == "" {
		user = m.CurrentUser()
	}
	ctx = observability.WithModule(ctx, moduleName)
	ctx = observability.WithMutationType(ctx, mutationType)
	if user != "" {
		ctx = observability.WithUserID(ctx, user)
	}

	mut := state.Mutation{
		ID:        uuid.NewString(),
		Type:      mutationType,
		Module:    moduleName,
		Action:    action,
		Payload:   payload,
		Timestamp: started,
		User:      user,
		Persist:   !opts.SkipPersist,
		Sync:      !opts.SkipSync,
	}

	m.mu.Lock()
	mod, ok := m.modules[moduleName]
	if !ok {
		m.mu.Unlock()
		err := ferrors.ModuleNotFoundError("unknown module in mutation type").
			WithContext("module", moduleName).
			WithContext("mutation", mutationType).
			Build()
		m.recorder.IncCommit(moduleName, false)
		m.handleError(ctx, "commit", err)
		return err
	}

	prev := state.CloneTree(m.tree)

	newSub, err := mod.Mutate(action, m.tree[moduleName], payload)
	if err != nil {
		m.tree = prev
		m.mu.Unlock()
		var cerr error
		if classified, ok := ferrors.AsClassified(err); ok {
			cerr = classified.WithContext("mutation", mutationType)
		} else {
			cerr = ferrors.WrapError(err, ferrors.CategoryValidation, "mutation rejected").
				WithContext("mutation", mutationType).
				Build()
		}
		m.recorder.IncCommit(moduleName, false)
		m.handleError(ctx, "commit", cerr)
		return cerr
	}
	m.tree[moduleName] = newSub

	if err := m.runMiddleware(ctx, mut, prev); err != nil {
		m.tree = prev
		m.mu.Unlock()
		m.recorder.IncCommit(moduleName, false)
		m.handleError(ctx, "commit", err)
		return err
	}

	newValue := state.DeepClone(m.tree[moduleName])
	m.invalidateGetters(moduleName)
	m.mu.Unlock()

	m.observers.Notify(moduleName, newValue, prev[moduleName])

	elapsed := time.Since(started)
	m.recorder.IncCommit(moduleName, true)
	m.recorder.ObserveCommitDuration(moduleName, elapsed)
	if m.hist != nil {
		m.recorder.SetHistoryLength(m.hist.Len())
	}
	m.publish(ctx, events.MutationApplied{Mutation: mut, Duration: elapsed})
	observability.DebugContext(ctx, "mutation committed", slog.Duration("duration", elapsed))
	return nil
}

// runMiddleware executes the chain in registration order while the state
// lock is held. The first error aborts the chain; callers roll back.
func (m *Manager) runMiddleware(ctx context.Context, mut state.Mutation, prev state.Tree) error {
	m.middlewareMu.Lock()
	chain := make([]Middleware, len(m.middleware))
	copy(chain, m.middleware)
	m.middlewareMu.Unlock()

	for _, mw := range chain {
		if err := mw.AfterMutation(ctx, m, mut, m.tree, prev); err != nil {
			if classified, ok := ferrors.AsClassified(err); ok {
				return classified.WithContext("middleware", mw.Name())
			}
			return ferrors.WrapError(err, ferrors.CategoryInternal, "middleware failed").
				WithContext("middleware", mw.Name()).
				WithContext("mutation", mut.Type).
				Build()
		}
	}
	return nil
}
