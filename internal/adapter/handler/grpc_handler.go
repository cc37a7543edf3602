package handler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/port"
)

// GRPCHandler serves the allocation service. Unlike the HTTP allocate route
// it waits for the whole cascade before replying.
type GRPCHandler struct {
	bus    Dispatcher
	views  port.AllocationsView
	logger *zap.Logger
}

func NewGRPCHandler(dispatcher Dispatcher, views port.AllocationsView, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{bus: dispatcher, views: views, logger: logger}
}

func (h *GRPCHandler) AddBatch(ctx context.Context, req *AddBatchRequest) (*Ack, error) {
	if req.Ref == "" || req.Sku == "" || req.Qty <= 0 {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}
	eta, err := parseETA(req.ETA)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := h.bus.Dispatch(ctx, domain.NewCreateBatch(req.Ref, req.Sku, req.Qty, eta)); err != nil {
		return nil, h.toStatus(err)
	}
	return &Ack{Message: "OK"}, nil
}

func (h *GRPCHandler) Allocate(ctx context.Context, req *AllocateRequest) (*Ack, error) {
	if req.OrderID == "" || req.Sku == "" || req.Qty <= 0 {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	if err := h.bus.Dispatch(ctx, domain.NewAllocate(req.OrderID, req.Sku, req.Qty)); err != nil {
		return nil, h.toStatus(err)
	}
	return &Ack{Message: "OK"}, nil
}

func (h *GRPCHandler) ChangeBatchQuantity(ctx context.Context, req *ChangeBatchQuantityRequest) (*Ack, error) {
	if req.Ref == "" || req.Qty < 0 {
		return nil, status.Error(codes.InvalidArgument, "missing required fields")
	}

	if err := h.bus.Dispatch(ctx, domain.NewChangeBatchQuantity(req.Ref, req.Qty)); err != nil {
		return nil, h.toStatus(err)
	}
	return &Ack{Message: "OK"}, nil
}

func (h *GRPCHandler) Allocations(ctx context.Context, req *AllocationsRequest) (*AllocationsResponse, error) {
	rows, err := service.Allocations(ctx, h.views, req.OrderID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	if len(rows) == 0 {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("order %s not found", req.OrderID))
	}
	return &AllocationsResponse{Allocations: rows}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case service.IsValidationError(err):
		return status.Error(codes.InvalidArgument, validationMessage(err))
	case errors.Is(err, port.ErrConcurrencyConflict):
		return status.Error(codes.Aborted, "concurrent update, please retry")
	default:
		h.logger.Error("rpc failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}
