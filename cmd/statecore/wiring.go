package main

import (
	"context"
	"log/slog"

	"git.ecosistema.dev/plataforma/statecore/internal/api"
	"git.ecosistema.dev/plataforma/statecore/internal/config"
	"git.ecosistema.dev/plataforma/statecore/internal/events"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/journal"
	"git.ecosistema.dev/plataforma/statecore/internal/modules"
	"git.ecosistema.dev/plataforma/statecore/internal/persist"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
	"git.ecosistema.dev/plataforma/statecore/internal/store"
	"git.ecosistema.dev/plataforma/statecore/internal/syncer"
)

// builtinModules returns the six platform modules. The API client may be
// nil; fetch actions are then unavailable.
func builtinModules(client *api.Client) []state.Module {
	return []state.Module{
		modules.NewUser(client),
		modules.NewProjects(client),
		modules.NewMeetings(client),
		modules.NewChat(client),
		modules.NewNotifications(),
		modules.NewUI(),
	}
}

// persistenceEngine builds the configured storage backend and wraps it in
// an engine collecting from the manager. Returns a nil engine when
// persistence is disabled.
func persistenceEngine(cfg config.PersistenceConfig, manager *store.Manager) (*persist.Engine, func() error, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	var backend persist.Backend
	var err error
	switch cfg.Backend {
	case "file":
		backend, err = persist.NewFileBackend(cfg.Path)
	case "nats":
		backend, err = persist.NewNATSBackend(cfg.NATSURL, cfg.Bucket)
	default:
		backend = persist.NewMemoryBackend()
	}
	if err != nil {
		return nil, nil, err
	}

	engine := persist.NewEngine(backend, persist.Config{
		Key:      cfg.Key,
		Version:  cfg.Version,
		Compress: cfg.Compress,
	}, manager.CollectPersistable)
	return engine, backend.Close, nil
}

func serverClient(client *api.Client) *syncer.ServerClient {
	if client == nil {
		return nil
	}
	return syncer.NewServerClient(client)
}

// reportCriticalErrors forwards sync and internal failures to the platform's
// error-collection endpoint. Everything else stays in the local log. Delivery
// is best effort; a failed report is only logged.
func reportCriticalErrors(ctx context.Context, bus *events.Bus, client *api.Client) func() {
	ch, unsubscribe := events.Subscribe[events.ErrorRecorded](bus, 16)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for evt := range ch {
			if !ferrors.HasCategory(evt.Err, ferrors.CategorySync) &&
				!ferrors.HasCategory(evt.Err, ferrors.CategoryInternal) {
				continue
			}
			_, err := client.Post(ctx, "/api/errors", map[string]any{
				"scope":   evt.Scope,
				"message": evt.Err.Error(),
			})
			if err != nil {
				slog.Debug("error report not delivered", "scope", evt.Scope, "error", err)
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

// journalMutations subscribes the journal to the mutation stream. The
// returned stop function unsubscribes and waits for the writer to drain.
func journalMutations(ctx context.Context, bus *events.Bus, j *journal.Journal) func() {
	ch, unsubscribe := events.Subscribe[events.MutationApplied](bus, 64)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for evt := range ch {
			if err := j.Append(ctx, evt.Mutation); err != nil {
				slog.Warn("journal append failed", "mutation", evt.Mutation.ID, "error", err)
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}
