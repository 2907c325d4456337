package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	ferrors "git.ecosistema.dev/plataforma/statecore/internal/foundation/errors"
)

// NATSTransport publishes and receives Updates over a NATS subject. The
// server rebroadcasts on the same subject, so every instance (including
// the originator) receives every update.
type NATSTransport struct {
	conn    *nats.Conn
	subject string
}

// NewNATSTransport connects to NATS for the given subject.
func NewNATSTransport(url, subject string) (*NATSTransport, error) {
	conn, err := nats.Connect(url,
		nats.Name("statecore-realtime"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("realtime transport connected", "url", url, "subject", subject)
	return &NATSTransport{conn: conn, subject: subject}, nil
}

// Publish implements Transport.
func (t *NATSTransport) Publish(_ context.Context, u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRealtime, "marshal update").Build()
	}
	if err := t.conn.Publish(t.subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRealtime, "publish update").
			WithContext("subject", t.subject).
			Build()
	}
	return nil
}

// Subscribe implements Transport.
func (t *NATSTransport) Subscribe(handler func(Update)) (func(), error) {
	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		var u Update
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			slog.Warn("dropping malformed realtime update", "subject", t.subject, "error", err)
			return
		}
		handler(u)
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRealtime, "subscribe").
			WithContext("subject", t.subject).
			Build()
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("realtime unsubscribe failed", "subject", t.subject, "error", err)
		}
	}, nil
}

// Close implements Transport.
func (t *NATSTransport) Close() error {
	t.conn.Close()
	return nil
}
