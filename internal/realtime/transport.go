// Package realtime carries live state updates between dashboard instances
// and the platform server. The transport is deliberately dumb: it moves
// Update envelopes; echo suppression and application order are the sync
// engine's concern.
package realtime

import (
	"context"
	"time"

	"git.ecosistema.dev/plataforma/statecore/internal/state"
)

// Update is one remotely-originated mutation on the wire.
type Update struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // "module/ACTION"
	Payload   state.Value `json:"payload,omitempty"`
	User      string      `json:"user,omitempty"`
	Origin    string      `json:"origin"` // publishing instance id
	Timestamp time.Time   `json:"timestamp"`
}

// Transport is a publish/subscribe channel for Updates.
type Transport interface {
	// Publish sends an update to every other subscriber. Depending on the
	// implementation the publisher may receive its own update back; the
	// consumer discards those by Origin.
	Publish(ctx context.Context, u Update) error

	// Subscribe registers a handler for incoming updates and returns an
	// unsubscribe closure. Handlers run sequentially per transport.
	Subscribe(handler func(Update)) (func(), error)

	// Close tears the transport down.
	Close() error
}
