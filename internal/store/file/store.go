// Package file implements the best-value store as a JSON document on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// Store reads and writes the best-value document at a fixed path.
type Store struct {
	path   string
	logger *zap.Logger
}

// New creates a file-backed store. The parent directory is created if needed.
func New(path string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create store directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat store directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("store directory %q is not a directory", dir)
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted store. A missing, unreadable or malformed
// document yields an empty store.
func (s *Store) Load(_ context.Context) points.Store {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read best values failed, starting empty", zap.String("path", s.path), zap.Error(err))
		}
		return points.Store{}
	}
	var records map[string]json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("malformed best values document, starting empty", zap.String("path", s.path), zap.Error(err))
		return points.Store{}
	}
	store := make(points.Store, len(records))
	for key, raw := range records {
		var rec points.BestRecord
		err := json.Unmarshal(raw, &rec)
		if err == nil && rec.PointsValue <= 0 {
			err = fmt.Errorf("points_value must be > 0, got %d", rec.PointsValue)
		}
		if err != nil {
			s.logger.Warn("skipping malformed best value record", zap.String("path", s.path), zap.String("key", key), zap.Error(err))
			continue
		}
		store[key] = rec
	}
	return store
}

// Raw returns the document bytes as last written.
func (s *Store) Raw(_ context.Context) ([]byte, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Save replaces the document atomically: readers see either the old or the
// new content, never a partial write.
func (s *Store) Save(_ context.Context, store points.Store) error {
	if store == nil {
		store = points.Store{}
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode store: %v", points.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", points.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.Warn("remove temp file failed", zap.String("path", tmpName), zap.Error(rmErr))
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write temp file: %v", points.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync temp file: %v", points.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close temp file: %v", points.ErrPersistence, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod temp file: %v", points.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %v", points.ErrPersistence, s.path, err)
	}
	s.logger.Debug("best values saved", zap.String("path", s.path), zap.Int("keys", len(store)))
	return nil
}

var _ points.ValueStore = (*Store)(nil)
