package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/semantica/internal/codec"
	"github.com/hyperjump/semantica/internal/embedding"
	"github.com/hyperjump/semantica/internal/index"
	"github.com/hyperjump/semantica/internal/storage"
)

func newRepo(t *testing.T, store storage.Store, opts ...Option) *Repository[int32] {
	t.Helper()
	return New[int32](store, "index.bin", codec.Int32{}, embedding.NewHashEmbedder(32), opts...)
}

func TestLoad_MissingBlobIsEmpty(t *testing.T) {
	r := newRepo(t, storage.NewFileStore(t.TempDir()))
	x, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, x.Len())
	assert.Equal(t, 32, x.Dimension())

	n, err := r.StoredSize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, store := range map[string]storage.Store{
		"file":      storage.NewFileStore(t.TempDir()),
		"file+zstd": storage.Compressed(storage.NewFileStore(t.TempDir()), storage.CompressionZSTD),
		"file+lz4":  storage.Compressed(storage.NewFileStore(t.TempDir()), storage.CompressionLZ4),
	} {
		t.Run(name, func(t *testing.T) {
			r := newRepo(t, store)
			x, err := r.Update(ctx, func(x *index.Index[int32]) error {
				_, err := x.AddBatch(ctx, []string{"apple", "banana", "cherry"}, []int32{1, 2, 3})
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, 3, x.Len())

			loaded, err := r.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, x.Order(), loaded.Order())
			m, ok, err := loaded.Search(ctx, "banana")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, int32(2), m.Value)

			n, err := r.StoredSize(ctx)
			require.NoError(t, err)
			assert.Positive(t, n)
		})
	}
}

func TestUpdate_FailureDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	r := newRepo(t, store)
	boom := errors.New("boom")
	_, err := r.Update(ctx, func(x *index.Index[int32]) error {
		_, _ = x.Add(ctx, "apple", 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "index.bin")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoad_CorruptBlob(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "index.bin", []byte{0, 0, 0, 0, 0, 0, 0, 99}))
	_, err := newRepo(t, store).Load(ctx)
	assert.ErrorIs(t, err, index.ErrFormat)
}

func TestRepository_Options(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	r := newRepo(t, storage.NewFileStore(t.TempDir()),
		WithLogger(zap.New(core)),
		WithIndexOptions(index.WithMinSimilarity(0.99)),
	)
	x, err := r.Load(ctx)
	require.NoError(t, err)
	_, err = x.Add(ctx, "red apple", 1)
	require.NoError(t, err)

	// Shares a word but is far below the raised threshold.
	_, ok, err := x.Search(ctx, "red")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Save(ctx, x))
	assert.NotZero(t, logs.FilterMessage("index saved").Len())
	assert.NotZero(t, logs.FilterMessage("entry added").Len())
	assert.Equal(t, "index.bin", r.Name())
}

func TestLoad_EmbedderMismatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	_, err := newRepo(t, store).Update(ctx, func(x *index.Index[int32]) error {
		_, err := x.Add(ctx, "apple", 1)
		return err
	})
	require.NoError(t, err)

	meta, err := store.Get(ctx, "index.bin.embedder")
	require.NoError(t, err)
	assert.Equal(t, "hash/v1/32\n", string(meta))

	static, err := embedding.NewStaticEmbedder(32, nil, nil)
	require.NoError(t, err)
	other := New[int32](store, "index.bin", codec.Int32{}, static)
	_, err = other.Load(ctx)
	require.ErrorIs(t, err, ErrEmbedderMismatch)
	var mismatch *EmbedderMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "hash/v1/32", mismatch.Stored)
	assert.Equal(t, "static/32", mismatch.Current)

	// Same provider, different dimension is also refused.
	_, err = New[int32](store, "index.bin", codec.Int32{}, embedding.NewHashEmbedder(64)).Load(ctx)
	assert.ErrorIs(t, err, ErrEmbedderMismatch)
}

func TestLoad_LegacyBlobWithoutFingerprint(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFileStore(t.TempDir())
	r := newRepo(t, store)
	_, err := r.Update(ctx, func(x *index.Index[int32]) error {
		_, err := x.Add(ctx, "apple", 1)
		return err
	})
	require.NoError(t, err)

	// Drop the sidecar by rewriting the blob under a store view that never saw it.
	data, err := store.Get(ctx, "index.bin")
	require.NoError(t, err)
	legacy := storage.NewFileStore(t.TempDir())
	require.NoError(t, legacy.Put(ctx, "index.bin", data))

	x, err := newRepo(t, legacy).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, x.Len())
}
