package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*miniredis.Miniredis, *CacheRepository) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, NewCacheRepository(client)
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	srv, repo := newCacheRepo(t)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "accounts:stats", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "accounts:stats", map[string]int{"STUDENT": 3}, time.Minute))
	assert.True(t, srv.Exists(CacheNamespace+"accounts:stats"))
	require.NoError(t, repo.Get(ctx, "accounts:stats", &out))
	assert.Equal(t, 3, out["STUDENT"])

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "accounts:stats", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "accounts:stats", 1, time.Minute))
	require.NoError(t, repo.Delete(ctx, "accounts:stats"))
	assert.False(t, srv.Exists(CacheNamespace+"accounts:stats"))
}

func TestCacheRepositoryDropsUndecodableDocuments(t *testing.T) {
	srv, repo := newCacheRepo(t)
	require.NoError(t, srv.Set(CacheNamespace+"accounts:stats", "{not json"))

	var out map[string]int
	assert.ErrorIs(t, repo.Get(context.Background(), "accounts:stats", &out), appErrors.ErrCacheMiss)
	assert.False(t, srv.Exists(CacheNamespace+"accounts:stats"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	var out int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
}
