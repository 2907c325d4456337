package persist

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process backend. Two engines sharing one
// MemoryBackend see each other's writes through Watch, which makes it the
// test double for cross-instance sync.
type MemoryBackend struct {
	mu       sync.Mutex
	values   map[string][]byte
	watchers map[string][]chan []byte
	closed   bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:   make(map[string][]byte),
		watchers: make(map[string][]chan []byte),
	}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	if !ok {
		return nil, ErrNotFound{Key: key}
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements Backend and notifies every watcher of key.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = stored

	// Sends stay under the mutex: watcher channels are closed under the
	// same mutex, so a concurrent Close or unsubscribe cannot close a
	// channel mid-send. Non-blocking, a slow watcher misses intermediate
	// writes but always observes the latest via Get.
	for _, ch := range b.watchers[key] {
		select {
		case ch <- stored:
		default:
		}
	}
	return nil
}

// Watch implements Backend.
func (b *MemoryBackend) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	ch := make(chan []byte, 8)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.watchers[key] = append(b.watchers[key], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		watchers := b.watchers[key]
		for i, w := range watchers {
			if w == ch {
				b.watchers[key] = append(watchers[:i], watchers[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for key, watchers := range b.watchers {
		for _, ch := range watchers {
			close(ch)
		}
		delete(b.watchers, key)
	}
	return nil
}
