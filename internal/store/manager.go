// Package store implements the state manager: the single orchestrator
// owning the module registry, the commit/dispatch surface, computed
// getters, subscriptions, and time-travel.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.ecosistema.dev/plataforma/statecore/internal/events"
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/history"
	"git.ecosistema.dev/plataforma/statecore/internal/metrics"
	"git.ecosistema.dev/plataforma/statecore/internal/observer"
	"git.ecosistema.dev/plataforma/statecore/internal/persist"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// DefaultActionTimeout bounds dispatched actions that inherit no deadline.
const DefaultActionTimeout = 30 * time.Second

// Options configure a Manager. Zero values select sane defaults: a fresh
// bus, noop metrics, no history, no persistence.
type Options struct {
	Bus           *events.Bus
	Recorder      metrics.Recorder
	History       *history.Log
	Persistence   *persist.Engine
	ActionTimeout time.Duration
	Version       string
}

// Manager is the process-wide store. Construct one at boot and hand it by
// reference to every consumer; there is no ambient global.
type Manager struct {
	mu      sync.RWMutex
	tree    state.Tree
	modules map[string]state.Module

	middlewareMu sync.Mutex
	middleware   []Middleware

	observers *observer.Registry
	bus       *events.Bus
	recorder  metrics.Recorder
	hist      *history.Log
	engine    *persist.Engine

	gettersMu    sync.Mutex
	gettersCache map[string]GetterSet

	loadingMu sync.Mutex
	loading   map[string]int

	userMu      sync.RWMutex
	currentUser string

	actionTimeout time.Duration
	instanceID    string
	version       string
}

// New creates an empty manager. Modules are added with RegisterModule and
// middleware with Use, both before the first commit.
func New(opts Options) *Manager {
	if opts.Bus == nil {
		opts.Bus = events.NewBus()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.ActionTimeout == 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}

	m := &Manager{
		tree:          make(state.Tree),
		modules:       make(map[string]state.Module),
		bus:           opts.Bus,
		recorder:      opts.Recorder,
		hist:          opts.History,
		engine:        opts.Persistence,
		gettersCache:  make(map[string]GetterSet),
		loading:       make(map[string]int),
		actionTimeout: opts.ActionTimeout,
		instanceID:    uuid.NewString(),
		version:       opts.Version,
	}
	m.observers = observer.NewRegistry(func(path string) (state.Value, bool) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		v, ok := state.GetPath(m.tree, path)
		if !ok {
			return nil, false
		}
		return state.DeepClone(v), true
	})
	return m
}

// InstanceID identifies this store instance; used for echo suppression on
// the realtime channel.
func (m *Manager) InstanceID() string { return m.instanceID }

// Bus returns the store's event bus for external listeners.
func (m *Manager) Bus() *events.Bus { return m.bus }

// SetPersistence installs the persistence engine. Called during boot wiring
// when the engine is constructed after the manager; must precede Hydrate and
// the first commit.
func (m *Manager) SetPersistence(engine *persist.Engine) {
	m.engine = engine
}

// SetCurrentUser attributes subsequent mutations to a user id.
func (m *Manager) SetCurrentUser(userID string) {
	m.userMu.Lock()
	m.currentUser = userID
	m.userMu.Unlock()
}

// CurrentUser returns the user id mutations are attributed to.
func (m *Manager) CurrentUser() string {
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	return m.currentUser
}

// RegisterModule installs a module under its name. Re-registration is a
// warned no-op; the original module stays in place.
func (m *Manager) RegisterModule(ctx context.Context, mod state.Module) {
	name := mod.Name()

	m.mu.Lock()
	if _, exists := m.modules[name]; exists {
		m.mu.Unlock()
		slog.Warn("module already registered, ignoring", "module", name)
		return
	}
	m.modules[name] = mod
	m.tree[name] = mod.InitialState()
	m.mu.Unlock()

	if init, ok := mod.(state.Initializer); ok {
		if err := init.Init(ctx); err != nil {
			m.handleError(ctx, "init", ferrors.WrapError(err, ferrors.CategoryInternal, "module init failed").
				WithContext("module", name).
				Build())
		}
	}

	slog.Debug("module registered", "module", name)
}

// Modules returns the registered module names.
func (m *Manager) Modules() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.modules))
	for name := range m.modules {
		names = append(names, name)
	}
	return names
}

// Snapshot returns a deep copy of the full state tree.
func (m *Manager) Snapshot() state.Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return state.CloneTree(m.tree)
}

// Get reads a dotted path from the tree, returning nil for missing
// segments. The returned value is a deep copy; callers cannot corrupt
// store state through it.
func (m *Manager) Get(path string) state.Value {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := state.GetPath(m.tree, path)
	if !ok {
		return nil
	}
	return state.DeepClone(v)
}

// Subscribe registers a path observer; see observer.Options for the
// immediate/deep/once semantics. Returns the unsubscribe closure.
func (m *Manager) Subscribe(path string, cb observer.Callback, opts observer.Options) func() {
	unsubscribe := m.observers.Subscribe(path, cb, opts)
	m.recorder.SetSubscriberCount(m.observers.Count())
	return func() {
		unsubscribe()
		m.recorder.SetSubscriberCount(m.observers.Count())
	}
}

// Reset restores every module to its initial state and clears the getter
// cache. History is deliberately kept: reset is itself a debuggable step.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	for name, mod := range m.modules {
		m.tree[name] = mod.InitialState()
	}
	m.mu.Unlock()

	m.invalidateAllGetters()
	m.observers.NotifyAll()
	m.publish(ctx, events.StoreReset{})
	slog.Info("store reset to initial state")
}

// TimeTravel replaces the live tree with the history snapshot at index.
// Returns false when the index is out of range or history is disabled.
// The next commit truncates every entry past the new cursor.
func (m *Manager) TimeTravel(ctx context.Context, index int) bool {
	if m.hist == nil {
		return false
	}
	entry, ok := m.hist.At(index)
	if !ok {
		return false
	}

	m.mu.Lock()
	m.tree = state.CloneTree(entry.Snapshot)
	m.mu.Unlock()
	m.hist.Seek(index)

	m.invalidateAllGetters()
	m.observers.NotifyAll()
	m.publish(ctx, events.TimeTraveled{Index: index, Mutation: entry.Mutation})
	slog.Info("time-traveled", "index", index, "mutation", entry.Mutation.Type)
	return true
}

// History exposes the history log (nil when time-travel is disabled).
func (m *Manager) History() *history.Log { return m.hist }

// CollectPersistable assembles the persisted partial tree: every module
// opting in through the Persistable capability, filtered by its
// PersistedState hook.
func (m *Manager) CollectPersistable() state.Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectPersistableLocked(m.tree)
}

// collectPersistableLocked filters tree without taking locks; callers
// hold at least a read lock, or pass an already-private clone.
func (m *Manager) collectPersistableLocked(tree state.Tree) state.Tree {
	partial := make(state.Tree)
	for name, mod := range m.modules {
		p, ok := mod.(state.Persistable)
		if !ok || !p.ShouldPersist() {
			continue
		}
		partial[name] = state.DeepClone(p.PersistedState(tree[name]))
	}
	return partial
}

// Hydrate merges persisted state into the freshly-initialized tree. Boot
// calls it once after module registration. Every failure is non-fatal:
// the store continues on defaults with a warning.
func (m *Manager) Hydrate(ctx context.Context) {
	if m.engine == nil {
		return
	}

	stored, env, err := m.engine.Load(ctx)
	if err != nil {
		if persist.IsNotFound(err) {
			slog.Debug("no persisted state, booting with defaults")
			return
		}
		m.recorder.IncHydration(false)
		m.handleError(ctx, "hydrate", err)
		slog.Warn("hydration failed, continuing with defaults", "error", err)
		return
	}

	var hydrated []string
	m.mu.Lock()
	for name, sub := range stored {
		mod, registered := m.modules[name]
		if !registered {
			continue
		}
		merged := state.ShallowMergeModule(m.tree[name], sub)
		m.tree[name] = merged
		if p, ok := mod.(state.Persistable); ok {
			p.OnHydrate(merged)
		}
		hydrated = append(hydrated, name)
	}
	m.mu.Unlock()

	m.invalidateAllGetters()
	m.recorder.IncHydration(true)
	m.publish(ctx, events.Hydrated{Modules: hydrated, Timestamp: env.Time()})
	slog.Info("state hydrated", "modules", len(hydrated), "persisted_at", env.Time())
}

// MergeSnapshot applies another instance's persisted partial tree. The
// caller (sync engine) already verified the snapshot is strictly newer.
func (m *Manager) MergeSnapshot(ctx context.Context, data state.Tree, ts time.Time) {
	var merged []string
	m.mu.Lock()
	for name, sub := range data {
		if _, registered := m.modules[name]; !registered {
			continue
		}
		m.tree[name] = state.ShallowMergeModule(m.tree[name], sub)
		merged = append(merged, name)
	}
	snapshot := make(map[string]state.Value, len(merged))
	for _, name := range merged {
		snapshot[name] = state.DeepClone(m.tree[name])
		m.invalidateGetters(name)
	}
	m.mu.Unlock()

	for _, name := range merged {
		m.observers.Notify(name, snapshot[name], nil)
	}
	m.recorder.IncCrossInstanceMerge()
	m.publish(ctx, events.CrossInstanceMerged{Timestamp: ts, Modules: merged})
	slog.Debug("merged cross-instance snapshot", "modules", merged, "timestamp", ts)
}

// publish delivers an event, bounding a stuck subscriber's blocking at
// five seconds so the commit path cannot hang forever.
func (m *Manager) publish(ctx context.Context, evt any) {
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.bus.Publish(pubCtx, evt); err != nil {
		slog.Warn("event publish failed", "error", err)
	}
}

// handleError is the central funnel for store errors: structured log plus
// a state:error event for external listeners.
func (m *Manager) handleError(ctx context.Context, scope string, err error) {
	slog.Error("store error", "scope", scope, "error", err)
	m.publish(ctx, events.ErrorRecorded{Scope: scope, Err: err})
}
