// Package gcs mirrors saved best-value snapshots to Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// DefaultObject is used when no object name is configured.
const DefaultObject = "best_points.json"

// Config captures the bucket location of the mirrored document.
type Config struct {
	Bucket string
	Object string
}

// Hasher fingerprints a serialized snapshot.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Mirror decorates a ValueStore, uploading each saved snapshot after the
// wrapped store has persisted it. Unchanged snapshots are not re-uploaded.
type Mirror struct {
	inner  points.ValueStore
	client *storage.Client
	hasher Hasher
	bucket string
	object string
	logger *zap.Logger

	mu         sync.Mutex
	lastDigest string
}

// New wraps inner with a GCS upload step.
func New(inner points.ValueStore, client *storage.Client, hasher Hasher, cfg Config, logger *zap.Logger) (*Mirror, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store is required")
	}
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		cfg.Object = DefaultObject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{
		inner:  inner,
		client: client,
		hasher: hasher,
		bucket: cfg.Bucket,
		object: cfg.Object,
		logger: logger,
	}, nil
}

// URI returns the gs:// location of the mirrored document.
func (m *Mirror) URI() string {
	return fmt.Sprintf("gs://%s/%s", m.bucket, m.object)
}

// Load delegates to the wrapped store.
func (m *Mirror) Load(ctx context.Context) points.Store {
	return m.inner.Load(ctx)
}

// Save persists through the wrapped store and then uploads the snapshot. An
// upload failure is reported but the local save stands.
func (m *Mirror) Save(ctx context.Context, store points.Store) error {
	if err := m.inner.Save(ctx, store); err != nil {
		return err
	}
	if store == nil {
		store = points.Store{}
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode mirror: %v", points.ErrPersistence, err)
	}

	digest, err := m.hasher.Hash(data)
	if err != nil {
		return fmt.Errorf("%w: digest mirror: %v", points.ErrPersistence, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if digest == m.lastDigest {
		m.logger.Debug("snapshot unchanged, mirror skipped", zap.String("sha256", digest))
		return nil
	}

	writer := m.client.Bucket(m.bucket).Object(m.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-store"
	writer.Metadata = map[string]string{"sha256": digest}
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("%w: mirror write: %v (close writer: %v)", points.ErrPersistence, err, closeErr)
		}
		return fmt.Errorf("%w: mirror write: %v", points.ErrPersistence, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: mirror close: %v", points.ErrPersistence, err)
	}
	m.lastDigest = digest
	m.logger.Debug("snapshot mirrored", zap.String("uri", m.URI()), zap.Int("bytes", len(data)), zap.String("sha256", digest))
	return nil
}

var _ points.ValueStore = (*Mirror)(nil)
