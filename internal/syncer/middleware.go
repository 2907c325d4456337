package syncer

import (
	"context"

	"git.ecosistema.dev/plataforma/statecore/internal/realtime"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
	"git.ecosistema.dev/plataforma/statecore/internal/store"
)

// Middleware feeds the sync engine from the commit path: every mutation
// flagged for sync is queued for the next server flush and broadcast on
// the realtime channel right away. Transport failures never veto the
// commit; the queued copy reaches the server on the next poll.
//
// Register this after every middleware that can veto a commit. The
// broadcast leaves the process immediately, so a veto by a later stage
// would roll back a mutation other instances already received.
func (e *Engine) Middleware() store.Middleware {
	return syncMiddleware{engine: e}
}

type syncMiddleware struct {
	engine *Engine
}

func (syncMiddleware) Name() string { return "sync" }

func (s syncMiddleware) AfterMutation(ctx context.Context, m *store.Manager, mut state.Mutation, tree, prev state.Tree) error {
	if !mut.Sync {
		return nil
	}

	u := realtime.Update{
		ID:        mut.ID,
		Type:      mut.Type,
		Payload:   mut.Payload,
		User:      mut.User,
		Origin:    s.engine.origin,
		Timestamp: mut.Timestamp,
	}

	s.engine.pending.push(u)
	s.engine.recorder.SetPendingUpdates(s.engine.pending.len())
	s.engine.broadcast(ctx, u)
	return nil
}
