package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
)

// Bus is the typed, in-process event channel between the store core and
// external listeners (router, widgets, journal, admin surface).
//
// Subscriptions are typed via generics; publishing to an interface type
// delivers every concrete event implementing it. Publish blocks until each
// subscriber accepted the event or the context is canceled, which keeps
// listeners observing mutations in commit order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[reflect.Type]map[uint64]*delivery
	nextID atomic.Uint64
	closed atomic.Bool
	once   sync.Once
}

// delivery guards its channel with a lifecycle lock: sends hold it shared,
// close holds it exclusively, so a channel is never closed mid-send.
type delivery struct {
	lifecycle sync.RWMutex
	closed    bool
	send      func(ctx context.Context, evt any) error
	close     func()
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*delivery)}
}

// Subscribe registers a subscription for events of type T and returns the
// receive channel plus an unsubscribe closure. Buffer sizes the channel;
// an unbuffered subscription applies backpressure to publishers.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeOf((*T)(nil)).Elem()
	ch := make(chan T, buffer)

	if b.closed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)

	d := &delivery{}

	var closeOnce sync.Once
	closeChannel := func() {
		closeOnce.Do(func() {
			d.lifecycle.Lock()
			d.closed = true
			close(ch)
			d.lifecycle.Unlock()
		})
	}

	var unsubOnce sync.Once
	unsubscribe := func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			closeChannel()
		})
	}

	d.send = func(ctx context.Context, evt any) error {
		v, ok := evt.(T)
		if !ok {
			return ferrors.InternalError("event type mismatch").
				WithContext("expected", eventType.String()).
				WithContext("actual", reflect.TypeOf(evt).String()).
				Build()
		}
		d.lifecycle.RLock()
		defer d.lifecycle.RUnlock()
		if d.closed {
			return nil
		}
		select {
		case ch <- v:
			return nil
		case <-ctx.Done():
			return ferrors.WrapError(ctx.Err(), ferrors.CategoryInternal, "event publish canceled").
				WithContext("event_type", eventType.String()).
				Build()
		}
	}
	d.close = closeChannel

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed.Load() {
		closeChannel()
		return ch, func() {}
	}
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*delivery)
	}
	b.subs[eventType][id] = d

	return ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers for type T.
// Intended for tests and diagnostics.
func SubscriberCount[T any](b *Bus) int {
	if b == nil {
		return 0
	}
	eventType := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

// Publish delivers evt to every matching subscriber, blocking per
// subscriber until accepted or ctx is done.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return ferrors.InternalError("event bus is closed").Build()
	}

	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	var targets []*delivery
	for subType, typeSubs := range b.subs {
		match := subType == evtType
		if !match && subType.Kind() == reflect.Interface {
			match = evtType.Implements(subType)
		}
		if !match {
			continue
		}
		for _, d := range typeSubs {
			targets = append(targets, d)
		}
	}
	b.mu.RUnlock()

	for _, d := range targets {
		if err := d.send(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the bus and every subscription channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.closed.Store(true)

		b.mu.Lock()
		var toClose []*delivery
		for _, typeSubs := range b.subs {
			for _, d := range typeSubs {
				toClose = append(toClose, d)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*delivery)
		b.mu.Unlock()

		for _, d := range toClose {
			d.close()
		}
	})
}
