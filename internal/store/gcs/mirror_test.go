package gcs_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/award-watcher/internal/hash/sha256"
	"github.com/JakeFAU/award-watcher/internal/points"
	"github.com/JakeFAU/award-watcher/internal/store/gcs"
)

type memStore struct {
	saved   points.Store
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) points.Store { return m.saved.Clone() }

func (m *memStore) Save(_ context.Context, s points.Store) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = s.Clone()
	return nil
}

func newClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	client := newClient(t, http.NotFoundHandler())

	_, err := gcs.New(nil, client, sha256.New(), gcs.Config{Bucket: "b"}, nil)
	assert.Error(t, err)
	_, err = gcs.New(&memStore{}, nil, sha256.New(), gcs.Config{Bucket: "b"}, nil)
	assert.Error(t, err)
	_, err = gcs.New(&memStore{}, client, nil, gcs.Config{Bucket: "b"}, nil)
	assert.Error(t, err)
	_, err = gcs.New(&memStore{}, client, sha256.New(), gcs.Config{}, nil)
	assert.Error(t, err)

	m, err := gcs.New(&memStore{}, client, sha256.New(), gcs.Config{Bucket: "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gs://b/best_points.json", m.URI())
}

func TestMirrorSaveUploadsAfterLocalSave(t *testing.T) {
	var uploads atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/award-bucket/o")
		assert.Equal(t, "snapshots/best_points.json", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"points_value": 97500`)
		assert.Contains(t, string(body), "application/json")
		assert.Contains(t, string(body), `"sha256"`)
		uploads.Add(1)
		fmt.Fprintln(w, `{"name": "snapshots/best_points.json", "bucket": "award-bucket"}`)
	})

	inner := &memStore{}
	m, err := gcs.New(inner, newClient(t, handler), sha256.New(), gcs.Config{Bucket: "award-bucket", Object: "snapshots/best_points.json"}, nil)
	require.NoError(t, err)

	store := points.Store{"VCP-2025-12-01": {Points: "97.500", PointsValue: 97500}}
	require.NoError(t, m.Save(context.Background(), store))
	assert.Equal(t, 1, inner.saves)
	assert.EqualValues(t, 1, uploads.Load())
	assert.Equal(t, store, m.Load(context.Background()))
}

func TestMirrorSkipsUploadWhenLocalSaveFails(t *testing.T) {
	var uploads atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		uploads.Add(1)
		fmt.Fprintln(w, `{}`)
	})

	inner := &memStore{saveErr: fmt.Errorf("%w: disk full", points.ErrPersistence)}
	m, err := gcs.New(inner, newClient(t, handler), sha256.New(), gcs.Config{Bucket: "b"}, nil)
	require.NoError(t, err)

	err = m.Save(context.Background(), points.Store{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, points.ErrPersistence))
	assert.Zero(t, uploads.Load())
}

func TestMirrorUploadErrorKeepsLocalSave(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	inner := &memStore{}
	m, err := gcs.New(inner, newClient(t, handler), sha256.New(), gcs.Config{Bucket: "b"}, nil)
	require.NoError(t, err)

	store := points.Store{"A-1": {Points: "1", PointsValue: 1}}
	err = m.Save(context.Background(), store)
	require.Error(t, err)
	assert.ErrorIs(t, err, points.ErrPersistence)
	assert.Equal(t, store, inner.saved)
}

func TestMirrorSkipsUnchangedSnapshot(t *testing.T) {
	var uploads atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		uploads.Add(1)
		fmt.Fprintln(w, `{"name": "best_points.json", "bucket": "b"}`)
	})

	inner := &memStore{}
	m, err := gcs.New(inner, newClient(t, handler), sha256.New(), gcs.Config{Bucket: "b"}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	store := points.Store{"A-1": {Points: "1", PointsValue: 1}}
	require.NoError(t, m.Save(ctx, store))
	require.NoError(t, m.Save(ctx, store))
	assert.EqualValues(t, 1, uploads.Load())
	assert.Equal(t, 2, inner.saves, "the local store is written every time")

	store["A-1"] = points.BestRecord{Points: "0.5", PointsValue: 5}
	require.NoError(t, m.Save(ctx, store))
	assert.EqualValues(t, 2, uploads.Load())
}
