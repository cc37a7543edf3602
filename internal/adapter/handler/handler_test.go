package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/allocation/internal/adapter/storage"
	"github.com/rl1809/allocation/internal/core/bus"
	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/port"
)

// testBus records dispatched commands and fails allocations by sku.
// Successful allocations commit an Allocated event whose handler writes the
// read model, held back while hold is open.
type testBus struct {
	*bus.Bus
	views *storage.RedisAllocationsView
	hold  chan struct{}

	mu       sync.Mutex
	commands []domain.Message
}

func newTestBus(t *testing.T) *testBus {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tb := &testBus{Bus: bus.New(), views: storage.NewRedisAllocationsView(client), hold: make(chan struct{})}
	close(tb.hold)

	require.NoError(t, bus.RegisterCommandHandler(tb.Bus, bus.HandlerFunc("add_batch",
		func(_ context.Context, cmd domain.CreateBatch) error {
			tb.record(cmd)
			return nil
		})))
	require.NoError(t, bus.RegisterCommandHandler(tb.Bus, bus.HandlerFunc("allocate",
		func(ctx context.Context, cmd domain.Allocate) error {
			tb.record(cmd)
			switch cmd.Sku {
			case "UNKNOWN":
				return fmt.Errorf("%w %s", service.ErrInvalidSku, cmd.Sku)
			case "CONTENDED":
				return fmt.Errorf("%w: product %s", port.ErrConcurrencyConflict, cmd.Sku)
			case "BROKEN":
				return errors.New("db exploded")
			}
			catcher := domain.CatcherFrom(ctx)
			catcher.Issue(domain.NewAllocated(cmd.OrderID, cmd.Sku, cmd.Qty, "batch-"+cmd.Sku))
			catcher.Commit(catcher.Drain())
			return nil
		})))
	require.NoError(t, bus.RegisterEventHandlers(tb.Bus, bus.HandlerFunc("add_allocation_to_read_model",
		func(ctx context.Context, evt domain.Allocated) error {
			<-tb.hold
			return tb.views.Add(ctx, evt.OrderID, evt.Sku, evt.BatchRef)
		})))
	require.NoError(t, bus.RegisterCommandHandler(tb.Bus, bus.HandlerFunc("change_batch_quantity",
		func(_ context.Context, cmd domain.ChangeBatchQuantity) error {
			tb.record(cmd)
			if cmd.Ref == "missing" {
				return fmt.Errorf("%w (batchref=%s)", service.ErrProductNotFound, cmd.Ref)
			}
			return nil
		})))
	return tb
}

func (tb *testBus) record(msg domain.Message) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.commands = append(tb.commands, msg)
}

func (tb *testBus) dispatched() []domain.Message {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append([]domain.Message(nil), tb.commands...)
}
