package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

const (
	notificationFrom = "from@example.com"
	notificationTo   = "to@example.com"
)

// Handlers holds every command and event handler of the service.
type Handlers struct {
	uow    port.UnitOfWorkFactory
	views  port.AllocationsView
	email  port.EmailSender
	logger *zap.Logger
}

func NewHandlers(uow port.UnitOfWorkFactory, views port.AllocationsView, email port.EmailSender, logger *zap.Logger) (*Handlers, error) {
	switch {
	case uow == nil:
		return nil, fmt.Errorf("%w: unit of work factory", ErrUnsatisfiedDependency)
	case views == nil:
		return nil, fmt.Errorf("%w: allocations view", ErrUnsatisfiedDependency)
	case email == nil:
		return nil, fmt.Errorf("%w: email sender", ErrUnsatisfiedDependency)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handlers{uow: uow, views: views, email: email, logger: logger}, nil
}

func (h *Handlers) AddBatch(ctx context.Context, cmd domain.CreateBatch) error {
	uow, err := h.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer uow.Rollback(ctx)

	product, err := uow.Products().Get(ctx, cmd.Sku)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		product = domain.NewProduct(cmd.Sku)
		if err := uow.Products().Add(ctx, product); err != nil {
			return fmt.Errorf("add product: %w", err)
		}
	}
	product.AddBatch(domain.NewBatch(cmd.Ref, cmd.Sku, cmd.Qty, cmd.ETA))

	return uow.Commit(ctx)
}

func (h *Handlers) Allocate(ctx context.Context, cmd domain.Allocate) error {
	line := domain.OrderLine{OrderID: cmd.OrderID, Sku: cmd.Sku, Qty: cmd.Qty}

	uow, err := h.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer uow.Rollback(ctx)

	product, err := uow.Products().Get(ctx, line.Sku)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return fmt.Errorf("%w %s", ErrInvalidSku, line.Sku)
	}

	if ref := product.Allocate(uow.Events(), line); ref == "" {
		h.logger.Info("out of stock", zap.String("order_id", line.OrderID), zap.String("sku", line.Sku))
	}

	return uow.Commit(ctx)
}

// Reallocate allocates a deallocated line again in a fresh unit of work.
func (h *Handlers) Reallocate(ctx context.Context, evt domain.Deallocated) error {
	return h.Allocate(ctx, domain.NewAllocate(evt.OrderID, evt.Sku, evt.Qty))
}

func (h *Handlers) ChangeBatchQuantity(ctx context.Context, cmd domain.ChangeBatchQuantity) error {
	uow, err := h.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer uow.Rollback(ctx)

	product, err := uow.Products().GetByBatchRef(ctx, cmd.Ref)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return fmt.Errorf("%w (batchref=%s)", ErrProductNotFound, cmd.Ref)
	}

	if err := product.ChangeBatchQuantity(uow.Events(), cmd.Ref, cmd.Qty); err != nil {
		return err
	}

	return uow.Commit(ctx)
}

func (h *Handlers) SendOutOfStockNotification(ctx context.Context, evt domain.OutOfStock) error {
	text := fmt.Sprintf("Out of stock for %s", evt.Sku)
	return h.email.Send(ctx, port.EmailMessage{
		From:    notificationFrom,
		To:      notificationTo,
		Subject: text,
		Text:    text,
	})
}

func (h *Handlers) AddAllocationToReadModel(ctx context.Context, evt domain.Allocated) error {
	return h.views.Add(ctx, evt.OrderID, evt.Sku, evt.BatchRef)
}

func (h *Handlers) RemoveAllocationFromReadModel(ctx context.Context, evt domain.Deallocated) error {
	return h.views.Remove(ctx, evt.OrderID, evt.Sku)
}
