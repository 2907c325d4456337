// Package history records (mutation, snapshot) pairs for time-travel
// debugging. The log is bounded: oldest entries are evicted first, and a
// commit made while the cursor is rewound discards the abandoned branch,
// matching standard undo/redo semantics.
package history

import (
	"sync"
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// DefaultMaxEntries bounds the log when no explicit limit is configured.
const DefaultMaxEntries = 50

// Entry is one recorded commit: the mutation and the full tree snapshot
// that resulted from it.
type Entry struct {
	Mutation   state.Mutation
	Snapshot   state.Tree
	RecordedAt time.Time
}

// Log is the bounded append-only mutation history. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	// cursor indexes the entry the live tree currently corresponds to;
	// -1 when the log is empty.
	cursor int
}

// NewLog creates a log bounded to max entries; max <= 0 selects the default.
func NewLog(max int) *Log {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &Log{max: max, cursor: -1}
}

// Append records a committed mutation. If the cursor is rewound, every
// entry past it is discarded first; then the entry is appended and the
// oldest entries evicted down to the bound. The cursor ends at the tip.
func (l *Log) Append(m state.Mutation, snapshot state.Tree) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor < len(l.entries)-1 {
		l.entries = l.entries[:l.cursor+1]
	}

	l.entries = append(l.entries, Entry{
		Mutation:   m,
		Snapshot:   snapshot,
		RecordedAt: time.Now(),
	})
	if overflow := len(l.entries) - l.max; overflow > 0 {
		l.entries = append([]Entry(nil), l.entries[overflow:]...)
	}
	l.cursor = len(l.entries) - 1
}

// At returns the entry at index, and whether the index is in range.
func (l *Log) At(index int) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.entries) {
		return Entry{}, false
	}
	return l.entries[index], true
}

// Seek moves the cursor to index. Reports false when out of range.
func (l *Log) Seek(index int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.entries) {
		return false
	}
	l.cursor = index
	return true
}

// Cursor returns the current cursor position (-1 when empty).
func (l *Log) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the retained entries in commit order.
// Snapshots are shared, not cloned; callers must treat them as read-only.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Clear drops every entry and rewinds the cursor.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.cursor = -1
}
