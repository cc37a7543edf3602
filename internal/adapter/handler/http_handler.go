package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/core/bus"
	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/port"
)

type HTTPHandler struct {
	bus    Dispatcher
	views  port.AllocationsView
	logger *zap.Logger

	// cascades counts allocate cascades still running after their response.
	cascades sync.WaitGroup
}

type AddBatchHTTPRequest struct {
	Ref string `json:"ref"`
	Sku string `json:"sku"`
	Qty int    `json:"qty"`
	ETA string `json:"eta"`
}

type AllocateHTTPRequest struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type ChangeBatchQuantityHTTPRequest struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

type MessageHTTPResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(dispatcher Dispatcher, views port.AllocationsView, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{bus: dispatcher, views: views, logger: logger}
}

// NewRouter builds the gin engine serving every route.
func NewRouter(h *HTTPHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.HealthCheck)
	r.POST("/add_batch", h.AddBatch)
	r.POST("/allocate", h.Allocate)
	r.POST("/change_batch_quantity", h.ChangeBatchQuantity)
	r.GET("/allocations/:order_id", h.ListAllocations)
	return r
}

func (h *HTTPHandler) AddBatch(c *gin.Context) {
	var req AddBatchHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}
	if req.Ref == "" || req.Sku == "" || req.Qty <= 0 {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}
	eta, err := parseETA(req.ETA)
	if err != nil {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: err.Error()})
		return
	}

	if err := h.bus.Dispatch(c.Request.Context(), domain.NewCreateBatch(req.Ref, req.Sku, req.Qty, eta)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MessageHTTPResponse{Message: "OK"})
}

// Allocate answers once the allocation is committed. The events it caused
// keep being handled after the response is written.
func (h *HTTPHandler) Allocate(c *gin.Context) {
	var req AllocateHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}
	if req.OrderID == "" || req.Sku == "" || req.Qty <= 0 {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	cascade, err := h.bus.DispatchAsync(ctx, domain.NewAllocate(req.OrderID, req.Sku, req.Qty))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.cascades.Add(1)
	go func() {
		defer h.cascades.Done()
		if err := cascade.Wait(); err != nil {
			h.logger.Error("allocation cascade failed", zap.String("order_id", req.OrderID), zap.Error(err))
		}
	}()
	c.JSON(http.StatusCreated, MessageHTTPResponse{Message: "OK"})
}

func (h *HTTPHandler) ChangeBatchQuantity(c *gin.Context) {
	var req ChangeBatchQuantityHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: "invalid request body"})
		return
	}
	if req.Ref == "" || req.Qty < 0 {
		c.JSON(http.StatusBadRequest, MessageHTTPResponse{Message: "missing required fields"})
		return
	}

	if err := h.bus.Dispatch(c.Request.Context(), domain.NewChangeBatchQuantity(req.Ref, req.Qty)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageHTTPResponse{Message: "OK"})
}

func (h *HTTPHandler) ListAllocations(c *gin.Context) {
	orderID := c.Param("order_id")

	rows, err := service.Allocations(c.Request.Context(), h.views, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, MessageHTTPResponse{Message: fmt.Sprintf("order %s not found", orderID)})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Drain waits for the allocate cascades still in flight. Call it after the
// server stopped accepting requests and before closing the stores they use.
func (h *HTTPHandler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.cascades.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain allocation cascades: %w", ctx.Err())
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case service.IsValidationError(err):
		status = http.StatusBadRequest
		message = validationMessage(err)
	case errors.Is(err, port.ErrConcurrencyConflict):
		status = http.StatusConflict
		message = "concurrent update, please retry"
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, MessageHTTPResponse{Message: message})
}

// validationMessage strips the handler wrapping so only the domain reason is shown.
func validationMessage(err error) string {
	var herr *bus.HandlerError
	if errors.As(err, &herr) {
		return herr.Err.Error()
	}
	return err.Error()
}
