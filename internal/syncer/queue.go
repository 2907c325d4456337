package syncer

import (
	"sync"

	"git.ecosistema.dev/plataforma/statecore/internal/realtime"
)

// DefaultQueueCapacity bounds the pending-update queue. When an instance
// stays offline long enough to fill it, the oldest updates are dropped;
// the next successful poll reconciles the rest.
const DefaultQueueCapacity = 256

// queue buffers locally-committed updates until the next flush to the
// server.
type queue struct {
	mu      sync.Mutex
	items   []realtime.Update
	cap     int
	dropped uint64
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &queue{cap: capacity}
}

func (q *queue) push(u realtime.Update) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.cap {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, u)
}

// drain removes and returns every pending update.
func (q *queue) drain() []realtime.Update {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// requeue puts updates back at the front after a failed flush.
func (q *queue) requeue(items []realtime.Update) {
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := append(items, q.items...)
	if len(merged) > q.cap {
		q.dropped += uint64(len(merged) - q.cap)
		merged = merged[len(merged)-q.cap:]
	}
	q.items = merged
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
