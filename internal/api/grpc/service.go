package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The informer service exchanges protobuf well-known types only, so it needs
// no generated code. Orders, fills and portfolio views travel as Structs
// shaped like their HTTP JSON bodies.

const ServiceName = "oms.Informer"

type InformerServer interface {
	NetWorth(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Portfolio(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetOrder(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListOrders(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	StreamFills(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterInformerServer(s grpc.ServiceRegistrar, srv InformerServer) {
	s.RegisterService(&Informer_ServiceDesc, srv)
}

func unary[In any, Out any](call func(InformerServer, context.Context, *In) (*Out, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(In)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InformerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InformerServer), ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func streamFillsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(InformerServer).StreamFills(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

var Informer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InformerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "NetWorth", Handler: unary(InformerServer.NetWorth, "NetWorth")},
		{MethodName: "Portfolio", Handler: unary(InformerServer.Portfolio, "Portfolio")},
		{MethodName: "GetOrder", Handler: unary(InformerServer.GetOrder, "GetOrder")},
		{MethodName: "ListOrders", Handler: unary(InformerServer.ListOrders, "ListOrders")},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamFills", Handler: streamFillsHandler, ServerStreams: true},
	},
}

// InformerClient is the client side of the informer service.
type InformerClient struct {
	cc grpc.ClientConnInterface
}

func NewInformerClient(cc grpc.ClientConnInterface) *InformerClient {
	return &InformerClient{cc: cc}
}

func (c *InformerClient) NetWorth(ctx context.Context, opts ...grpc.CallOption) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/NetWorth", &emptypb.Empty{}, out, opts...); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *InformerClient) Portfolio(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Portfolio", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InformerClient) GetOrder(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetOrder", wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InformerClient) ListOrders(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListOrders", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamFills opens a fill stream. The server sends response headers once the
// subscription is live, so callers may wait on Header before triggering fills.
func (c *InformerClient) StreamFills(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &Informer_ServiceDesc.Streams[0], "/"+ServiceName+"/StreamFills", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
