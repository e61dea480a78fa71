// Package jsonfile provides a file-backed implementation of the offline
// action Store. The whole collection lives under one well-known file as a
// JSON array and is rewritten on every mutation, mirroring the
// read-modify-write contract of the action log.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	offline "github.com/c0deZ3R0/go-offline-kit"
)

// DefaultFileName is the well-known file name used when only a directory is
// configured.
const DefaultFileName = "offline-actions.json"

// Config holds configuration options for the file store.
type Config struct {
	// Path is the file holding the serialized action collection. If it
	// names a directory, DefaultFileName inside it is used.
	Path string

	// Logger is an optional logger for internal diagnostics. If nil,
	// logging is disabled.
	Logger *slog.Logger
}

// Store persists the action collection to a single JSON file.
type Store struct {
	path   string
	logger *slog.Logger
}

// New creates a file store at the configured path, creating parent
// directories as needed.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("jsonfile: path is required")
	}

	path := cfg.Path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonfile: creating parent directory: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}

	return &Store{path: path, logger: logger}, nil
}

// Load reads the persisted collection. A missing or corrupt file yields an
// empty collection, never an error: the queue must degrade rather than
// block its caller on bad local state.
func (s *Store) Load(ctx context.Context) ([]offline.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("jsonfile: reading %s: %w", s.path, err)
	}

	var actions []offline.Action
	if err := json.Unmarshal(data, &actions); err != nil {
		s.logger.Warn("discarding corrupt action file", slog.String("path", s.path), slog.String("error", err.Error()))
		return nil, nil
	}
	return actions, nil
}

// Save overwrites the persisted collection. The write goes through a
// temporary file and a rename so a crash mid-write cannot corrupt the
// existing collection.
func (s *Store) Save(ctx context.Context, actions []offline.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if actions == nil {
		actions = []offline.Action{}
	}

	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("jsonfile: encoding actions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("jsonfile: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("jsonfile: replacing %s: %w", s.path, err)
	}
	return nil
}

// Reset clears the persisted collection.
func (s *Store) Reset(ctx context.Context) error {
	return s.Save(ctx, nil)
}

// Close is a no-op; the store holds no open handles between operations.
func (s *Store) Close() error {
	return nil
}

// Path returns the file backing this store.
func (s *Store) Path() string {
	return s.path
}
