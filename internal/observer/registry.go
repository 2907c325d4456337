// Package observer implements the store's path-keyed subscription table.
// Reactivity is push-based: the manager notifies the registry with the
// mutated module's path and the registry fans out to matching callbacks.
package observer

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Callback receives the new and previous values for a subscribed path.
// For deep subscriptions the previous value is the last value delivered to
// this subscription, not the manager's notification value.
type Callback func(newValue, oldValue state.Value)

// Options tune a single subscription.
type Options struct {
	// Immediate invokes the callback synchronously during Subscribe with
	// the current value and a nil previous value.
	Immediate bool
	// Deep also fires when a path below the subscribed path mutates; the
	// callback receives a fresh read of its own path. Paths above the
	// subscription always fire it, deep or not: notifications are
	// module-grained and the registry re-reads the watched path.
	Deep bool
	// Once removes the subscription after its first invocation.
	Once bool
}

// Reader resolves a dotted path against the current state tree.
type Reader func(path string) (state.Value, bool)

type subscription struct {
	id       string
	path     string
	callback Callback
	deep     bool
	once     bool
	fired    bool
	// lastSeen backs the previous-value argument for deep re-reads.
	lastSeen state.Value
}

// Registry groups subscriptions by exact path and notifies them on state
// change. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	read   Reader
	byPath map[string][]*subscription
}

// NewRegistry creates a registry reading current values through read.
func NewRegistry(read Reader) *Registry {
	return &Registry{
		read:   read,
		byPath: make(map[string][]*subscription),
	}
}

// Subscribe registers a callback for path and returns an unsubscribe
// closure. With Options.Immediate the callback runs synchronously before
// Subscribe returns.
func (r *Registry) Subscribe(path string, cb Callback, opts Options) func() {
	sub := &subscription{
		id:       uuid.NewString(),
		path:     path,
		callback: cb,
		deep:     opts.Deep,
		once:     opts.Once,
	}

	// Seed lastSeen so the first re-read notification reports the
	// pre-mutation value, not nil.
	current, _ := r.read(path)
	sub.lastSeen = current

	if opts.Immediate {
		invoke(sub, current, nil)
		if opts.Once {
			return func() {}
		}
	}

	r.mu.Lock()
	r.byPath[path] = append(r.byPath[path], sub)
	r.mu.Unlock()

	return func() { r.remove(path, sub.id) }
}

// Count returns the number of live subscriptions. Diagnostics only.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, subs := range r.byPath {
		n += len(subs)
	}
	return n
}

// Notify fans a mutation out to subscribers. Two passes: exact-path
// subscribers get the notified values; subscribers watching a path below
// modulePath, and deep subscribers watching a path above it, get a fresh
// read of their own path. Once-subscriptions are swept after both passes
// so that notification iteration never mutates the table mid-walk.
func (r *Registry) Notify(modulePath string, newValue, oldValue state.Value) {
	r.mu.Lock()
	var exact, reread []*subscription
	for path, subs := range r.byPath {
		for _, sub := range subs {
			switch {
			case path == modulePath:
				exact = append(exact, sub)
			case strings.HasPrefix(path, modulePath+"."):
				reread = append(reread, sub)
			case sub.deep && strings.HasPrefix(modulePath, path+"."):
				reread = append(reread, sub)
			}
		}
	}
	r.mu.Unlock()

	for _, sub := range exact {
		sub.fired = true
		sub.lastSeen = newValue
		invoke(sub, newValue, oldValue)
	}
	for _, sub := range reread {
		fresh, _ := r.read(sub.path)
		previous := sub.lastSeen
		sub.fired = true
		sub.lastSeen = fresh
		invoke(sub, fresh, previous)
	}

	r.sweepOnce()
}

// NotifyAll re-notifies every subscription from a fresh read of its own
// path. Used after reset and time-travel, where every module may have
// changed.
func (r *Registry) NotifyAll() {
	r.mu.Lock()
	var all []*subscription
	for _, subs := range r.byPath {
		all = append(all, subs...)
	}
	r.mu.Unlock()

	for _, sub := range all {
		fresh, _ := r.read(sub.path)
		previous := sub.lastSeen
		sub.fired = true
		sub.lastSeen = fresh
		invoke(sub, fresh, previous)
	}

	r.sweepOnce()
}

func (r *Registry) sweepOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, subs := range r.byPath {
		kept := subs[:0]
		for _, sub := range subs {
			if sub.once && sub.fired {
				continue
			}
			kept = append(kept, sub)
		}
		if len(kept) == 0 {
			delete(r.byPath, path)
		} else {
			r.byPath[path] = kept
		}
	}
}

func (r *Registry) remove(path, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.byPath[path]
	for i, sub := range subs {
		if sub.id == id {
			r.byPath[path] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.byPath[path]) == 0 {
		delete(r.byPath, path)
	}
}

// invoke isolates each subscriber: one panicking callback cannot block the
// rest of the notification pass.
func invoke(sub *subscription, newValue, oldValue state.Value) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("state subscriber panicked",
				"path", sub.path,
				"subscription", sub.id,
				"panic", rec)
		}
	}()
	sub.callback(newValue, oldValue)
}
