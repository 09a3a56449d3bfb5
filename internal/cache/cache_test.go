package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counts struct {
	Likes int64 `json:"likes"`
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
		mr.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	key := PostCountsKey(4)

	calls := 0
	fetch := func(dest *counts) func() error {
		return func() error {
			calls++
			dest.Likes = 3
			return nil
		}
	}

	var first counts
	require.NoError(t, Aside(ctx, key, "", &first, PostCountsTTL, fetch(&first)))
	assert.Equal(t, int64(3), first.Likes)
	assert.True(t, mr.Exists(key))

	var second counts
	require.NoError(t, Aside(ctx, key, "", &second, PostCountsTTL, fetch(&second)))
	assert.Equal(t, int64(3), second.Likes)
	assert.Equal(t, 1, calls)

	InvalidatePostCounts(ctx, 4)
	assert.False(t, mr.Exists(key))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupRedis(t)
	boom := errors.New("db down")

	var dest counts
	err := Aside(context.Background(), "k", "", &dest, PostCountsTTL, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestAside_RedisDownFallsThrough(t *testing.T) {
	mr := setupRedis(t)
	mr.Close()

	var dest counts
	err := Aside(context.Background(), "k", "", &dest, PostCountsTTL, func() error {
		dest.Likes = 9
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), dest.Likes)
}

func TestAside_NoClient(t *testing.T) {
	SetClient(nil)

	var dest counts
	err := Aside(context.Background(), "k", "", &dest, PostCountsTTL, func() error {
		dest.Likes = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), dest.Likes)
	InvalidatePostCounts(context.Background(), 1)
}

func TestAside_GuardedWriteAndInvalidate(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	key, guard := PostCountsKey(5), PostCountsGenerationKey(5)

	var dest counts
	require.NoError(t, Aside(ctx, key, guard, &dest, PostCountsTTL, func() error {
		dest.Likes = 2
		return nil
	}))
	assert.True(t, mr.Exists(key))

	InvalidatePostCounts(ctx, 5)
	assert.False(t, mr.Exists(key))
	gen, err := mr.Get(guard)
	require.NoError(t, err)
	assert.Equal(t, "1", gen)
	assert.Greater(t, mr.TTL(guard), PostCountsTTL)
}

func TestAside_InvalidationDuringFetchDropsWrite(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	key, guard := PostCountsKey(6), PostCountsGenerationKey(6)

	// The totals are read, then a toggle commits and invalidates before the write.
	var stale counts
	require.NoError(t, Aside(ctx, key, guard, &stale, PostCountsTTL, func() error {
		stale.Likes = 1
		InvalidatePostCounts(ctx, 6)
		return nil
	}))
	assert.Equal(t, int64(1), stale.Likes)
	assert.False(t, mr.Exists(key))

	var fresh counts
	require.NoError(t, Aside(ctx, key, guard, &fresh, PostCountsTTL, func() error {
		fresh.Likes = 2
		return nil
	}))
	assert.True(t, mr.Exists(key))

	var cached counts
	found, err := GetJSON(ctx, key, &cached)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), cached.Likes)
}

func TestPostCountsKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "post:12:interaction_counts", PostCountsKey(12))
	assert.Equal(t, "post:12:interaction_counts:gen", PostCountsGenerationKey(12))
}
