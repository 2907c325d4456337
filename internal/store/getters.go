package store

import (
	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// GetterSet memoizes computed values for one module, keyed by getter name.
type GetterSet map[string]state.Value

// Getter evaluates a module's named computed value. Results are memoized
// until the owning module commits a mutation; other modules' commits keep
// the cache intact. Getters may resolve getters of other modules through
// the resolver they receive.
func (m *Manager) Getter(module, name string) (state.Value, error) {
	m.mu.RLock()
	mod, registered := m.modules[module]
	m.mu.RUnlock()
	if !registered {
		return nil, ferrors.ModuleNotFoundError("unknown module in getter lookup").
			WithContext("module", module).
			WithContext("getter", name).
			Build()
	}

	provider, ok := mod.(state.GetterProvider)
	if !ok {
		return nil, ferrors.InternalError("module exposes no getters").
			WithContext("module", module).
			WithContext("getter", name).
			Build()
	}
	fn, ok := provider.Getters()[name]
	if !ok {
		return nil, ferrors.InternalError("unknown getter").
			WithContext("module", module).
			WithContext("getter", name).
			Build()
	}

	m.gettersMu.Lock()
	if cached, hit := m.gettersCache[module][name]; hit {
		m.gettersMu.Unlock()
		return cached, nil
	}
	m.gettersMu.Unlock()

	// Snapshot outside the getter lock so cross-module resolution can
	// recurse into Getter without deadlocking.
	m.mu.RLock()
	sub := state.DeepClone(m.tree[module])
	tree := state.CloneTree(m.tree)
	m.mu.RUnlock()

	value := fn(sub, tree, m.resolveGetter)

	m.gettersMu.Lock()
	set, ok := m.gettersCache[module]
	if !ok {
		set = make(GetterSet)
		m.gettersCache[module] = set
	}
	set[name] = value
	m.gettersMu.Unlock()
	return value, nil
}

// resolveGetter adapts Getter to the resolver signature handed to getter
// functions for cross-module reads.
func (m *Manager) resolveGetter(module, getter string) (state.Value, error) {
	return m.Getter(module, getter)
}

// invalidateGetters drops the memoized values of one module.
func (m *Manager) invalidateGetters(module string) {
	m.gettersMu.Lock()
	delete(m.gettersCache, module)
	m.gettersMu.Unlock()
}

// invalidateAllGetters drops every memoized value; used by reset,
// time-travel and hydration, which touch multiple modules at once.
func (m *Manager) invalidateAllGetters() {
	m.gettersMu.Lock()
	m.gettersCache = make(map[string]GetterSet)
	m.gettersMu.Unlock()
}
