package store

import (
	"context"
	"log/slog"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/history"
	"git.ecosistema.dev/plataforma/statecore/internal/persist"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Middleware observes every successful mutation while the state lock is
// held. The tree argument is the post-mutation state, prev the snapshot
// taken before it; both must be treated as read-only. Returning an error
// rolls the whole commit back.
type Middleware interface {
	Name() string
	AfterMutation(ctx context.Context, m *Manager, mut state.Mutation, tree, prev state.Tree) error
}

// Use appends a middleware to the chain. Chain order is registration
// order; install everything before the first commit.
func (m *Manager) Use(mw Middleware) {
	m.middlewareMu.Lock()
	m.middleware = append(m.middleware, mw)
	m.middlewareMu.Unlock()
	slog.Debug("middleware registered", "middleware", mw.Name())
}

// LoggerMiddleware writes a structured debug line per mutation. Payloads
// are logged by type only; they may hold user content.
type LoggerMiddleware struct{}

func (LoggerMiddleware) Name() string { return "logger" }

func (LoggerMiddleware) AfterMutation(ctx context.Context, m *Manager, mut state.Mutation, tree, prev state.Tree) error {
	slog.Debug("mutation",
		"id", mut.ID,
		"type", mut.Type,
		"user", mut.User,
		"persist", mut.Persist,
		"sync", mut.Sync,
	)
	return nil
}

// ValidatorMiddleware asks the mutated module to validate the result when
// it implements the Validator capability. A validation error vetoes the
// commit.
type ValidatorMiddleware struct{}

func (ValidatorMiddleware) Name() string { return "validator" }

func (ValidatorMiddleware) AfterMutation(ctx context.Context, m *Manager, mut state.Mutation, tree, prev state.Tree) error {
	mod := m.modules[mut.Module]
	v, ok := mod.(state.Validator)
	if !ok {
		return nil
	}
	if err := v.ValidateMutation(mut, tree[mut.Module], prev[mut.Module]); err != nil {
		if _, classified := ferrors.AsClassified(err); classified {
			return err
		}
		return ferrors.ValidationError("mutation failed validation").
			WithContext("mutation", mut.Type).
			WithCause(err).
			Build()
	}
	return nil
}

// PersistenceMiddleware writes the persistable partial tree after every
// mutation flagged Persist. Backend failures never veto the commit: the
// state stays applied in memory and the error is surfaced through the
// store's error funnel.
type PersistenceMiddleware struct {
	Engine *persist.Engine
}

func (PersistenceMiddleware) Name() string { return "persistence" }

func (p PersistenceMiddleware) AfterMutation(ctx context.Context, m *Manager, mut state.Mutation, tree, prev state.Tree) error {
	if p.Engine == nil || !mut.Persist {
		return nil
	}
	partial := m.collectPersistableLocked(tree)
	if err := p.Engine.PersistPartial(ctx, partial); err != nil {
		m.handleError(ctx, "persistence", err)
	}
	return nil
}

// HistoryMiddleware appends the mutation and a full post-state snapshot
// to the bounded time-travel log, truncating any entries past the cursor
// left by a previous time-travel.
type HistoryMiddleware struct {
	Log *history.Log
}

func (HistoryMiddleware) Name() string { return "history" }

func (h HistoryMiddleware) AfterMutation(ctx context.Context, m *Manager, mut state.Mutation, tree, prev state.Tree) error {
	if h.Log == nil {
		return nil
	}
	diverging := h.Log.Cursor() < h.Log.Len()-1
	h.Log.Append(mut, state.CloneTree(tree))
	if diverging {
		m.recorder.IncHistoryTruncation()
	}
	return nil
}
