package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bulatminnakhmetov/property-site/internal/media"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "listings/a/photos/2.jpg", strings.NewReader("two"), 3, "image/jpeg"))
	require.NoError(t, store.Put(ctx, "listings/a/photos/1.jpg", strings.NewReader("one"), 3, "image/jpeg"))
	require.NoError(t, store.Put(ctx, "listings/b/photos/1.jpg", strings.NewReader("other"), 5, "image/jpeg"))

	objs, err := store.List(ctx, "listings/a/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "listings/a/photos/1.jpg", objs[0].Key)
	assert.Equal(t, int64(3), objs[0].Size)
	assert.Equal(t, "image/jpeg", objs[0].ContentType)

	data, ok := store.Read("listings/a/photos/2.jpg")
	assert.True(t, ok)
	assert.Equal(t, "two", string(data))

	require.NoError(t, store.Delete(ctx, "listings/a/photos/2.jpg"))
	require.NoError(t, store.Delete(ctx, "listings/a/photos/2.jpg"), "deleting a missing object succeeds")
	assert.Equal(t, []string{"listings/a/photos/1.jpg", "listings/b/photos/1.jpg"}, store.Keys())

	t.Run("Failure hooks", func(t *testing.T) {
		boom := errors.New("boom")
		store.FailPut = func(key string) error { return boom }
		assert.ErrorIs(t, store.Put(ctx, "k", strings.NewReader("x"), 1, ""), boom)
		store.FailPut = nil

		store.FailList = func(string) error { return boom }
		_, err := store.List(ctx, "listings/")
		assert.ErrorIs(t, err, boom)
		store.FailList = nil
	})

	t.Run("Put hook sees rejected writes", func(t *testing.T) {
		var puts []string
		store.OnPut = func(key string) { puts = append(puts, key) }
		store.FailPut = func(key string) error {
			if key == "listings/c/photos/bad.jpg" {
				return errors.New("boom")
			}
			return nil
		}
		defer func() { store.OnPut, store.FailPut = nil, nil }()

		require.NoError(t, store.Put(ctx, "listings/c/photos/ok.jpg", strings.NewReader("x"), 1, ""))
		assert.Error(t, store.Put(ctx, "listings/c/photos/bad.jpg", strings.NewReader("x"), 1, ""))
		assert.Equal(t, []string{"listings/c/photos/ok.jpg", "listings/c/photos/bad.jpg"}, puts)
	})
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k", "v", time.Minute))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	now = now.Add(time.Minute)
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

type countingStore struct {
	*MemoryStore
	signs int
}

func (s *countingStore) SignRead(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.signs++
	return s.MemoryStore.SignRead(ctx, key, ttl)
}

func TestCachedSigner(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	inner := &countingStore{MemoryStore: NewMemoryStore()}
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }
	signer := NewCachedSigner(inner, cache, nil)

	var _ media.ObjectStore = signer

	first, err := signer.SignRead(ctx, "listings/a/hero/h.jpg", time.Hour)
	require.NoError(t, err)
	second, err := signer.SignRead(ctx, "listings/a/hero/h.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.signs)

	// less than the reuse margin left
	now = now.Add(56 * time.Minute)
	_, err = signer.SignRead(ctx, "listings/a/hero/h.jpg", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.signs)

	t.Run("Short lived urls are not cached", func(t *testing.T) {
		_, _ = signer.SignRead(ctx, "listings/a/hero/x.jpg", 2*time.Minute)
		_, _ = signer.SignRead(ctx, "listings/a/hero/x.jpg", 2*time.Minute)
		assert.Equal(t, 4, inner.signs)
	})

	t.Run("Signing errors are returned", func(t *testing.T) {
		inner.FailSign = func(string) error { return errors.New("signBlob denied") }
		defer func() { inner.FailSign = nil }()
		_, err := signer.SignRead(ctx, "listings/a/hero/new.jpg", time.Hour)
		assert.EqualError(t, err, "signBlob denied")
	})
}
