package store

import (
	"context"

	"git.ecosistema.dev/plataforma/statecore/internal/events"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// ApplyRemote commits a mutation that originated on another instance via
// the push channel. It skips persistence and sync enqueueing so remote
// updates cannot echo back out, then publishes the realtime event.
func (m *Manager) ApplyRemote(ctx context.Context, mutationType string, payload state.Value, user, origin string) error {
	err := m.commit(ctx, mutationType, payload, state.CommitOptions{
		SkipPersist: true,
		SkipSync:    true,
		User:        user,
	})
	if err != nil {
		return err
	}

	moduleName, action, _ := state.SplitType(mutationType)
	m.publish(ctx, events.RealtimeApplied{
		Mutation: state.Mutation{Type: mutationType, Module: moduleName, Action: action, Payload: payload, User: user},
		Origin:   origin,
	})
	return nil
}
