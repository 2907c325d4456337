package realtime

import (
	"context"
	"sort"
	"sync"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
)

// Loopback is an in-process transport delivering every published update to
// every subscriber, the publisher's own included. It mirrors the
// rebroadcast behavior of the production channel and backs the sync
// engine's tests.
type Loopback struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Update)
	closed   bool
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[int]func(Update))}
}

// Publish implements Transport. Handlers run synchronously in
// subscription order.
func (l *Loopback) Publish(_ context.Context, u Update) error {
	l.mu.Lock()
	ids := make([]int, 0, len(l.handlers))
	for id := range l.handlers {
		ids = append(ids, id)
	}
	// map order is random; deliver in registration order
	sort.Ints(ids)
	handlers := make([]func(Update), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, l.handlers[id])
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(u)
	}
	return nil
}

// Subscribe implements Transport.
func (l *Loopback) Subscribe(handler func(Update)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ferrors.RealtimeError("transport is closed").Build()
	}
	id := l.nextID
	l.nextID++
	l.handlers[id] = handler
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, id)
	}, nil
}

// Close implements Transport.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = make(map[int]func(Update))
	l.closed = true
	return nil
}
