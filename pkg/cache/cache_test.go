package cache

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, slog.Default()), mr
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	type entry struct {
		ID   string `json:"id"`
		Size int    `json:"size"`
	}
	require.NoError(t, c.Set(ctx, "k1", entry{ID: "e1", Size: 3}, time.Minute))

	var got entry
	hit, err := c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, entry{ID: "e1", Size: 3}, got)

	hit, err = c.Get(ctx, "absent", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Delete(ctx, "k1"))
	hit, err = c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSetZeroTTLUsesDefault(t *testing.T) {
	c, mr := newTestCache(t)

	require.NoError(t, c.Set(context.Background(), "k1", "v", 0))
	assert.Equal(t, DefaultTTL, mr.TTL("k1"))
}

func TestExpiredEntryReadsAsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	var got string
	hit, err := c.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCorruptEntryIsDropped(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("k1", "{not json"))

	var got map[string]any
	hit, err := c.Get(context.Background(), "k1", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("k1"))
}

func TestInvalidateTagDropsOnlyTaggedKeys(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", "v1", time.Minute, "course:c1"))
	require.NoError(t, c.Set(ctx, "k2", "v2", time.Minute, "course:c1", "user:u1"))
	require.NoError(t, c.Set(ctx, "k3", "v3", time.Minute, "user:u1"))

	require.NoError(t, c.InvalidateTag(ctx, "course:c1"))

	assert.False(t, mr.Exists("k1"))
	assert.False(t, mr.Exists("k2"))
	assert.True(t, mr.Exists("k3"))
	assert.False(t, mr.Exists(tagKeyPrefix+"course:c1"))
	assert.True(t, mr.Exists(tagKeyPrefix+"user:u1"))
}

func TestFetchBuildsOnceThenServesCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	builds := 0
	build := func(ctx context.Context) (any, error) {
		builds++
		return map[string]string{"id": "e1"}, nil
	}

	var got map[string]string
	require.NoError(t, c.Fetch(ctx, "k1", time.Minute, []string{"course:c1"}, &got, build))
	assert.Equal(t, 1, builds)
	assert.Equal(t, map[string]string{"id": "e1"}, got)

	got = nil
	require.NoError(t, c.Fetch(ctx, "k1", time.Minute, nil, &got, build))
	assert.Equal(t, 1, builds)
	assert.Equal(t, map[string]string{"id": "e1"}, got)
}

func TestFetchRebuildsAfterTagInvalidation(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	builds := 0
	build := func(ctx context.Context) (any, error) {
		builds++
		return builds, nil
	}

	var got int
	require.NoError(t, c.Fetch(ctx, "k1", time.Minute, []string{"user:u1"}, &got, build))
	assert.Equal(t, 1, got)

	require.NoError(t, c.InvalidateTag(ctx, "user:u1"))

	require.NoError(t, c.Fetch(ctx, "k1", time.Minute, []string{"user:u1"}, &got, build))
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, builds)
}

func TestFetchPropagatesBuildError(t *testing.T) {
	c, mr := newTestCache(t)

	wantErr := errors.New("backend down")
	var got string
	err := c.Fetch(context.Background(), "k1", time.Minute, nil, &got, func(ctx context.Context) (any, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, mr.Exists("k1"))
}
