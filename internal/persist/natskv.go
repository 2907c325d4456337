package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSBackend stores envelopes in a JetStream key-value bucket, shared by
// every dashboard instance pointed at the same NATS cluster.
type NATSBackend struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	bucket string
}

// NewNATSBackend connects to NATS and creates or opens the bucket.
func NewNATSBackend(url, bucket string) (*NATSBackend, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	b := &NATSBackend{conn: conn, js: js, bucket: bucket}
	if err := b.initBucket(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("NATS storage backend initialized", "url", url, "bucket", bucket)
	return b, nil
}

func (b *NATSBackend) initBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := b.js.KeyValue(ctx, b.bucket)
	if err == nil {
		b.kv = kv
		return nil
	}

	kv, err = b.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      b.bucket,
		Description: "Persisted dashboard state envelopes",
		History:     1, // only the latest envelope matters
	})
	if err != nil {
		return fmt.Errorf("create KV bucket %s: %w", b.bucket, err)
	}
	b.kv = kv
	return nil
}

// Get implements Backend.
func (b *NATSBackend) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, ErrNotFound{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s from bucket %s: %w", key, b.bucket, err)
	}
	return entry.Value(), nil
}

// Set implements Backend.
func (b *NATSBackend) Set(ctx context.Context, key string, value []byte) error {
	if _, err := b.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("put %s into bucket %s: %w", key, b.bucket, err)
	}
	return nil
}

// Watch implements Backend. The initial replay of existing values is
// skipped; only writes after the watch began are delivered.
func (b *NATSBackend) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	watcher, err := b.kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("watch %s in bucket %s: %w", key, b.bucket, err)
	}

	ch := make(chan []byte, 8)
	go func() {
		defer close(ch)
		defer watcher.Stop()
		replaying := true
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if update == nil {
					// nil marks the end of the initial replay.
					replaying = false
					continue
				}
				if replaying || update.Operation() != jetstream.KeyValuePut {
					continue
				}
				select {
				case ch <- update.Value():
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close implements Backend.
func (b *NATSBackend) Close() error {
	b.conn.Close()
	return nil
}
