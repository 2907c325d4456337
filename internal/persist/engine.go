package persist

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Collector assembles the partial tree to persist: one entry per module
// whose persistence policy is enabled, already filtered through the
// module's PersistedState hook. Provided by the store manager.
type Collector func() state.Tree

// Engine writes persisted envelopes through a backend and loads them back.
type Engine struct {
	backend  Backend
	key      string
	version  string
	compress bool
	collect  Collector

	// lastPersisted lets cross-instance watchers discard our own writes:
	// an envelope with this exact timestamp (or older) is never re-merged.
	lastPersisted atomic.Int64
}

// Config holds engine construction parameters.
type Config struct {
	Key      string
	Version  string
	Compress bool
}

// NewEngine creates a persistence engine over backend. An empty key
// selects DefaultKey.
func NewEngine(backend Backend, cfg Config, collect Collector) *Engine {
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	return &Engine{
		backend:  backend,
		key:      key,
		version:  cfg.Version,
		compress: cfg.Compress,
		collect:  collect,
	}
}

// Key returns the storage key the engine writes under.
func (e *Engine) Key() string { return e.key }

// LastPersisted returns the timestamp of this instance's latest write.
func (e *Engine) LastPersisted() time.Time {
	return time.UnixMilli(e.lastPersisted.Load())
}

// Persist collects the persistable slice of the tree and writes one
// envelope to the backend. Failures are classified persistence errors;
// the caller logs and continues, never aborts a commit over them.
func (e *Engine) Persist(ctx context.Context) error {
	return e.PersistPartial(ctx, e.collect())
}

// PersistPartial writes an envelope for an already-collected partial tree.
// The commit path uses this form: the manager holds its lock while the
// persistence middleware runs, so the collector must not be re-entered.
func (e *Engine) PersistPartial(ctx context.Context, partial state.Tree) error {
	now := time.Now()

	raw, err := EncodeEnvelope(partial, e.version, e.compress, now)
	if err != nil {
		return err
	}
	// Recorded before the write: watchers fire on Set, and our own write
	// must never look like another instance's.
	e.lastPersisted.Store(now.UnixMilli())
	if err := e.backend.Set(ctx, e.key, raw); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryPersistence, "write persisted envelope").
			WithContext("key", e.key).
			Build()
	}

	slog.Debug("persisted state envelope",
		"key", e.key,
		"modules", len(partial),
		"compressed", e.compress)
	return nil
}

// Load reads and decodes the stored envelope. A missing key returns
// ErrNotFound untouched so boot can distinguish "first run" from a broken
// envelope.
func (e *Engine) Load(ctx context.Context) (state.Tree, Envelope, error) {
	raw, err := e.backend.Get(ctx, e.key)
	if err != nil {
		if IsNotFound(err) {
			return nil, Envelope{}, err
		}
		return nil, Envelope{}, ferrors.WrapError(err, ferrors.CategoryPersistence, "read persisted envelope").
			WithContext("key", e.key).
			Build()
	}
	return DecodeEnvelope(raw)
}

// Watch exposes the backend's change stream for the engine's key.
func (e *Engine) Watch(ctx context.Context) (<-chan []byte, error) {
	return e.backend.Watch(ctx, e.key)
}
