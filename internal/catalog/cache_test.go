package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/Prjsupa/vivero-api/internal/catalog"
)

func TestCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := catalog.NewCache(client, time.Minute)
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	ok, err := cache.GetJSON(ctx, "k", &payload{})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.SetJSON(ctx, "k", payload{Name: "lavanda"}))

	var got payload
	ok, err = cache.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "lavanda", got.Name)

	require.NoError(t, cache.Delete(ctx, "k"))
	ok, err = cache.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheNilClient(t *testing.T) {
	cache := catalog.NewCache(nil, time.Minute)
	ok, err := cache.GetJSON(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, cache.SetJSON(context.Background(), "k", struct{}{}))
}
