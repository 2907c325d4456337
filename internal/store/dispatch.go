package store

import (
	"context"
	"log/slog"
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/events"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/observability"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Dispatch runs an async action "module/actionName" on a module
// implementing the Actor capability. Actions commit through the handed
// ActionContext; they never touch the tree directly. A context without a
// deadline gets the store's configured action timeout.
func (m *Manager) Dispatch(ctx context.Context, actionType string, payload state.Value) (state.Value, error) {
	started := time.Now()

	moduleName, action, ok := state.SplitType(actionType)
	if !ok {
		err := ferrors.ValidationError("malformed action type, want module/ACTION").
			WithContext("action", actionType).
			Build()
		m.handleError(ctx, "dispatch", err)
		return nil, err
	}

	ctx = observability.WithModule(ctx, moduleName)
	ctx = observability.WithActionType(ctx, actionType)

	m.mu.RLock()
	mod, ok := m.modules[moduleName]
	m.mu.RUnlock()
	if !ok {
		err := ferrors.ModuleNotFoundError("unknown module in action type").
			WithContext("module", moduleName).
			WithContext("action", actionType).
			Build()
		m.recorder.IncDispatch(actionType, false)
		m.handleError(ctx, "dispatch", err)
		return nil, err
	}

	actor, ok := mod.(state.Actor)
	if !ok {
		err := ferrors.ActionError("module exposes no actions").
			WithContext("module", moduleName).
			WithContext("action", actionType).
			Build()
		m.recorder.IncDispatch(actionType, false)
		m.handleError(ctx, "dispatch", err)
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.actionTimeout)
		defer cancel()
	}

	m.setLoading(ctx, actionType, true)
	defer m.setLoading(ctx, actionType, false)

	result, err := actor.Action(ctx, action, &actionContext{manager: m}, payload)
	elapsed := time.Since(started)

	if err != nil {
		var cerr error
		if classified, ok := ferrors.AsClassified(err); ok {
			cerr = classified.WithContext("action", actionType)
		} else {
			cerr = ferrors.ActionError("action failed").
				WithContext("action", actionType).
				WithCause(err).
				Build()
		}
		m.recorder.IncDispatch(actionType, false)
		m.handleError(ctx, "dispatch", cerr)
		m.publish(ctx, events.ActionDispatched{ActionType: actionType, Err: cerr, Duration: elapsed})
		return nil, cerr
	}

	m.recorder.IncDispatch(actionType, true)
	m.publish(ctx, events.ActionDispatched{ActionType: actionType, Duration: elapsed})
	observability.DebugContext(ctx, "action dispatched", slog.Duration("duration", elapsed))
	return result, nil
}

// Loading reports whether any in-flight dispatch of actionType is active.
func (m *Manager) Loading(actionType string) bool {
	m.loadingMu.Lock()
	defer m.loadingMu.Unlock()
	return m.loading[actionType] > 0
}

// setLoading counts concurrent dispatches per action type and publishes a
// LoadingChanged edge when the count crosses zero.
func (m *Manager) setLoading(ctx context.Context, actionType string, active bool) {
	m.loadingMu.Lock()
	prev := m.loading[actionType]
	if active {
		m.loading[actionType] = prev + 1
	} else if prev > 0 {
		m.loading[actionType] = prev - 1
	}
	now := m.loading[actionType]
	m.loadingMu.Unlock()

	if (prev == 0) != (now == 0) {
		m.publish(ctx, events.LoadingChanged{ActionType: actionType, Active: now > 0})
	}
}

// actionContext is the store surface handed to action handlers. It is the
// only path from an action back into the store, which keeps mutation
// handlers themselves free of store access.
type actionContext struct {
	manager *Manager
}

var _ state.ActionContext = (*actionContext)(nil)

func (a *actionContext) Commit(ctx context.Context, mutationType string, payload state.Value) error {
	return a.manager.Commit(ctx, mutationType, payload)
}

func (a *actionContext) Dispatch(ctx context.Context, actionType string, payload state.Value) (state.Value, error) {
	return a.manager.Dispatch(ctx, actionType, payload)
}

func (a *actionContext) Get(path string) state.Value {
	return a.manager.Get(path)
}

func (a *actionContext) Getter(module, name string) (state.Value, error) {
	return a.manager.Getter(module, name)
}
