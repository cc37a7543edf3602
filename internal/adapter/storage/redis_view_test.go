package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/allocation/internal/port"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisAllocationsView_AddAndQuery(t *testing.T) {
	mr, client := newTestRedis(t)
	view := NewRedisAllocationsView(client)
	ctx := context.Background()

	require.NoError(t, view.Add(ctx, "order1", "sku1", "sku1batch"))
	require.NoError(t, view.Add(ctx, "order1", "sku2", "sku2batch"))
	require.NoError(t, view.Add(ctx, "order2", "sku1", "sku1batch-later"))

	rows, err := view.ForOrder(ctx, "order1")
	require.NoError(t, err)
	assert.Equal(t, []port.AllocationView{
		{Sku: "sku1", BatchRef: "sku1batch"},
		{Sku: "sku2", BatchRef: "sku2batch"},
	}, rows)

	assert.Equal(t, "sku1batch-later", mr.HGet("allocations:order2", "sku1"))
}

func TestRedisAllocationsView_AddOverwritesSameSku(t *testing.T) {
	_, client := newTestRedis(t)
	view := NewRedisAllocationsView(client)
	ctx := context.Background()

	require.NoError(t, view.Add(ctx, "o1", "sku1", "b1"))
	require.NoError(t, view.Remove(ctx, "o1", "sku1"))
	require.NoError(t, view.Add(ctx, "o1", "sku1", "b2"))

	rows, err := view.ForOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, []port.AllocationView{{Sku: "sku1", BatchRef: "b2"}}, rows)
}

func TestRedisAllocationsView_UnknownOrder(t *testing.T) {
	_, client := newTestRedis(t)
	view := NewRedisAllocationsView(client)

	rows, err := view.ForOrder(context.Background(), "missing")

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRedisAllocationsView_ServerDown(t *testing.T) {
	mr, client := newTestRedis(t)
	view := NewRedisAllocationsView(client)
	mr.Close()

	err := view.Add(context.Background(), "o1", "sku1", "b1")

	assert.Error(t, err)
}
