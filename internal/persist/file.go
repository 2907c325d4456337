package persist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileBackend stores one JSON file per key under a directory and watches
// it with fsnotify. Several processes pointing at the same directory see
// each other's writes, which is how cross-instance sync works in the
// file-backed deployment.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the directory if needed and returns the backend.
func NewFileBackend(dir string) (*FileBackend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory %s: %w", abs, err)
	}
	return &FileBackend{dir: abs}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

// Get implements Backend.
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path(key), err)
	}
	return raw, nil
}

// Set implements Backend. The write goes through a temp file and rename so
// watchers never observe a torn envelope.
func (b *FileBackend) Set(_ context.Context, key string, value []byte) error {
	target := b.path(key)
	tmp, err := os.CreateTemp(b.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", target, err)
	}
	return nil
}

// Watch implements Backend. The directory is watched rather than the file
// itself, which survives the rename-based writes editors and this backend
// both use.
func (b *FileBackend) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(b.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch storage directory %s: %w", b.dir, err)
	}

	ch := make(chan []byte, 8)
	fileName := filepath.Base(b.path(key))

	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != fileName {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				raw, err := os.ReadFile(b.path(key))
				if err != nil {
					// Rename races are expected; the next event re-reads.
					continue
				}
				select {
				case ch <- raw:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("storage watcher error", "dir", b.dir, "error", err)
			}
		}
	}()

	return ch, nil
}

// Close implements Backend. Watch goroutines hold their own watchers and
// shut down with their contexts.
func (b *FileBackend) Close() error { return nil }
