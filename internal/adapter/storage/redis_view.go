package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/allocation/internal/port"
)

const allocationsKeyPrefix = "allocations:"

// RedisAllocationsView keeps one hash per order, mapping sku to batch reference.
type RedisAllocationsView struct {
	client *redis.Client
}

func NewRedisAllocationsView(client *redis.Client) *RedisAllocationsView {
	return &RedisAllocationsView{client: client}
}

func (r *RedisAllocationsView) Add(ctx context.Context, orderID, sku, batchRef string) error {
	if err := r.client.HSet(ctx, allocationsKeyPrefix+orderID, sku, batchRef).Err(); err != nil {
		return fmt.Errorf("add allocation view: %w", err)
	}
	return nil
}

func (r *RedisAllocationsView) Remove(ctx context.Context, orderID, sku string) error {
	if err := r.client.HDel(ctx, allocationsKeyPrefix+orderID, sku).Err(); err != nil {
		return fmt.Errorf("remove allocation view: %w", err)
	}
	return nil
}

func (r *RedisAllocationsView) ForOrder(ctx context.Context, orderID string) ([]port.AllocationView, error) {
	fields, err := r.client.HGetAll(ctx, allocationsKeyPrefix+orderID).Result()
	if err != nil {
		return nil, fmt.Errorf("query allocation view: %w", err)
	}

	views := make([]port.AllocationView, 0, len(fields))
	for sku, ref := range fields {
		views = append(views, port.AllocationView{Sku: sku, BatchRef: ref})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Sku < views[j].Sku })
	return views, nil
}
