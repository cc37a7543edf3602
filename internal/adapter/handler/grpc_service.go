package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/allocation/internal/port"
)

const allocationServiceName = "allocation.v1.Allocation"

type AddBatchRequest struct {
	Ref string `json:"ref"`
	Sku string `json:"sku"`
	Qty int    `json:"qty"`
	ETA string `json:"eta,omitempty"`
}

type AllocateRequest struct {
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type ChangeBatchQuantityRequest struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

type AllocationsRequest struct {
	OrderID string `json:"order_id"`
}

type AllocationsResponse struct {
	Allocations []port.AllocationView `json:"allocations"`
}

type Ack struct {
	Message string `json:"message"`
}

type AllocationServer interface {
	AddBatch(context.Context, *AddBatchRequest) (*Ack, error)
	Allocate(context.Context, *AllocateRequest) (*Ack, error)
	ChangeBatchQuantity(context.Context, *ChangeBatchQuantityRequest) (*Ack, error)
	Allocations(context.Context, *AllocationsRequest) (*AllocationsResponse, error)
}

func RegisterAllocationServer(s grpc.ServiceRegistrar, srv AllocationServer) {
	s.RegisterService(&allocationServiceDesc, srv)
}

var allocationServiceDesc = grpc.ServiceDesc{
	ServiceName: allocationServiceName,
	HandlerType: (*AllocationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddBatch",
			Handler: unaryHandler("AddBatch", func(s AllocationServer, ctx context.Context, in *AddBatchRequest) (any, error) {
				return s.AddBatch(ctx, in)
			}),
		},
		{
			MethodName: "Allocate",
			Handler: unaryHandler("Allocate", func(s AllocationServer, ctx context.Context, in *AllocateRequest) (any, error) {
				return s.Allocate(ctx, in)
			}),
		},
		{
			MethodName: "ChangeBatchQuantity",
			Handler: unaryHandler("ChangeBatchQuantity", func(s AllocationServer, ctx context.Context, in *ChangeBatchQuantityRequest) (any, error) {
				return s.ChangeBatchQuantity(ctx, in)
			}),
		},
		{
			MethodName: "Allocations",
			Handler: unaryHandler("Allocations", func(s AllocationServer, ctx context.Context, in *AllocationsRequest) (any, error) {
				return s.Allocations(ctx, in)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req any](method string, call func(AllocationServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	info := &grpc.UnaryServerInfo{FullMethod: "/" + allocationServiceName + "/" + method}

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AllocationServer), ctx, in)
		}

		info := *info
		info.Server = srv
		return interceptor(ctx, in, &info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(AllocationServer), ctx, req.(*Req))
		})
	}
}

// AllocationClient calls the allocation service using the JSON codec.
type AllocationClient struct {
	cc grpc.ClientConnInterface
}

func NewAllocationClient(cc grpc.ClientConnInterface) *AllocationClient {
	return &AllocationClient{cc: cc}
}

func (c *AllocationClient) AddBatch(ctx context.Context, in *AddBatchRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.invoke(ctx, "AddBatch", in, out, opts)
}

func (c *AllocationClient) Allocate(ctx context.Context, in *AllocateRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.invoke(ctx, "Allocate", in, out, opts)
}

func (c *AllocationClient) ChangeBatchQuantity(ctx context.Context, in *ChangeBatchQuantityRequest, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	return out, c.invoke(ctx, "ChangeBatchQuantity", in, out, opts)
}

func (c *AllocationClient) Allocations(ctx context.Context, in *AllocationsRequest, opts ...grpc.CallOption) (*AllocationsResponse, error) {
	out := new(AllocationsResponse)
	return out, c.invoke(ctx, "Allocations", in, out, opts)
}

func (c *AllocationClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+allocationServiceName+"/"+method, in, out, opts...)
}
