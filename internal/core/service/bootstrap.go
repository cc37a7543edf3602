package service

import (
	"errors"

	"github.com/rl1809/allocation/internal/core/bus"
	"github.com/rl1809/allocation/internal/core/domain"
)

// Bootstrap builds the bus with every handler registered.
func Bootstrap(h *Handlers, opts ...bus.Option) (*bus.Bus, error) {
	b := bus.New(opts...)

	err := errors.Join(
		bus.RegisterCommandHandler(b, bus.HandlerFunc("add_batch", h.AddBatch)),
		bus.RegisterCommandHandler(b, bus.HandlerFunc("allocate", h.Allocate)),
		bus.RegisterCommandHandler(b, bus.HandlerFunc("change_batch_quantity", h.ChangeBatchQuantity)),
		bus.RegisterEventHandlers(b,
			bus.HandlerFunc("add_allocation_to_read_model", h.AddAllocationToReadModel),
		),
		bus.RegisterEventHandlers(b,
			bus.HandlerFunc("remove_allocation_from_read_model", h.RemoveAllocationFromReadModel),
			bus.HandlerFunc("reallocate", h.Reallocate),
		),
		bus.RegisterEventHandlers[domain.OutOfStock](b,
			bus.HandlerFunc("send_out_of_stock_notification", h.SendOutOfStockNotification),
		),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}
