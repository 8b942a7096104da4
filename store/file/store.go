// Package file implements the store contract on a plain filesystem: one JSON
// document per object under the persistence root. It is the default backend.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/creditkit/creditkit/latch"
	"github.com/creditkit/creditkit/store"
)

// EnvRoot is the environment variable naming the persistence root.
const EnvRoot = "PERSISTENCE_FOLDER"

// DefaultRoot is used when EnvRoot is unset.
const DefaultRoot = "./data/"

// compile-time interface checks
var (
	_ store.Store      = (*Store)(nil)
	_ store.BatchStore = (*Store)(nil)
)

// Store persists each object as a pretty-printed JSON file named after its ID.
type Store struct {
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a file store rooted at dir. An empty dir falls back to the
// EnvRoot environment variable, then DefaultRoot.
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = os.Getenv(EnvRoot)
	}
	if dir == "" {
		dir = DefaultRoot
	}
	s := &Store{root: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the persistence root directory.
func (s *Store) Root() string { return s.root }

// Init creates the persistence root. Idempotent.
func (s *Store) Init(_ context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("store/file: create root %s: %w", s.root, err)
	}
	return nil
}

func (s *Store) path(id string) (string, error) {
	if err := store.CheckID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id+".json"), nil
}

// LoadObject reads and decodes an object file.
func (s *Store) LoadObject(_ context.Context, id string, allowMissing bool) (store.Object, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if allowMissing {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("store/file: load %s: %w", id, err)
	}
	var obj store.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("store/file: decode %s: %w", id, err)
	}
	return obj, nil
}

// StoreObject writes an object file, replacing any previous version. The
// write goes through a temp file and rename so a crash never leaves a
// half-written object.
func (s *Store) StoreObject(_ context.Context, id string, obj store.Object) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	path, err := s.path(id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("store/file: encode %s: %w", id, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store/file: write %s: %w", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store/file: commit %s: %w", id, err)
	}
	return nil
}

// StoreBatch writes a set of objects concurrently and waits for every write
// to land. The first failure is reported; failed IDs stay unwritten so the
// caller can retry them.
func (s *Store) StoreBatch(ctx context.Context, objects map[string]store.Object) error {
	if len(objects) == 0 {
		return nil
	}

	wait := latch.New(len(objects))
	errs := make(chan error, len(objects))
	for id, obj := range objects {
		go func(id string, obj store.Object) {
			defer wait.Done()
			if err := s.StoreObject(ctx, id, obj); err != nil {
				s.logger.Error("store/file: batch write failed", "id", id, "error", err)
				errs <- err
			}
		}(id, obj)
	}

	if err := wait.Wait(ctx); err != nil {
		return err
	}
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

// Ping checks the persistence root is still reachable.
func (s *Store) Ping(_ context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("store/file: ping: %w", err)
	}
	return nil
}

// Close marks the store closed. Files already written stay on disk.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}
