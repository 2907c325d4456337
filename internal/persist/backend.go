// Package persist serializes a filtered subset of the state tree to a
// pluggable storage backend and restores it at boot. Backends also expose
// a change notification channel, which is how one instance observes
// another instance's writes (the cross-instance analogue of the browser
// storage event).
package persist

import "context"

// DefaultKey is the storage key holding the entire persisted envelope.
const DefaultKey = "ecosistema_state"

// Backend is a key-value storage backend holding persisted envelopes.
type Backend interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Watch delivers raw values written to key, including this instance's
	// own writes. Consumers dedupe by envelope timestamp. The channel is
	// closed when ctx is canceled or the backend closes.
	Watch(ctx context.Context, key string) (<-chan []byte, error)

	// Close releases backend resources.
	Close() error
}

// ErrNotFound is returned when no value exists under a key.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return "no persisted value under key: " + e.Key
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}
