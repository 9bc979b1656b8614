package ledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The ledger service is described with protobuf well-known types only, so
// its descriptor is registered by hand rather than generated.
const (
	LedgerService_ServiceName = "ledger.v1.LedgerService"

	LedgerService_SubmitQuestion_FullMethodName    = "/ledger.v1.LedgerService/SubmitQuestion"
	LedgerService_GetCount_FullMethodName          = "/ledger.v1.LedgerService/GetCount"
	LedgerService_ListRecords_FullMethodName       = "/ledger.v1.LedgerService/ListRecords"
	LedgerService_ListNotifications_FullMethodName = "/ledger.v1.LedgerService/ListNotifications"
)

// LedgerServiceServer is the server API for the ledger service.
type LedgerServiceServer interface {
	// SubmitQuestion records the caller's question.
	SubmitQuestion(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	// GetCount returns the number of accepted questions.
	GetCount(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
	// ListRecords streams an account's questions in submission order.
	ListRecords(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
	// ListNotifications streams journal events after a sequence number.
	ListNotifications(*wrapperspb.UInt64Value, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterLedgerServiceServer registers srv on s.
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerService_ServiceDesc, srv)
}

func _LedgerService_SubmitQuestion_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).SubmitQuestion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_SubmitQuestion_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).SubmitQuestion(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_GetCount_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServiceServer).GetCount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LedgerService_GetCount_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LedgerServiceServer).GetCount(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _LedgerService_ListRecords_Handler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LedgerServiceServer).ListRecords(m, &grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ServerStream: stream})
}

func _LedgerService_ListNotifications_Handler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.UInt64Value)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(LedgerServiceServer).ListNotifications(m, &grpc.GenericServerStream[wrapperspb.UInt64Value, structpb.Struct]{ServerStream: stream})
}

// LedgerService_ServiceDesc is the grpc.ServiceDesc for the ledger service.
var LedgerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerService_ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitQuestion",
			Handler:    _LedgerService_SubmitQuestion_Handler,
		},
		{
			MethodName: "GetCount",
			Handler:    _LedgerService_GetCount_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListRecords",
			Handler:       _LedgerService_ListRecords_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "ListNotifications",
			Handler:       _LedgerService_ListNotifications_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "ledger/v1/ledger.proto",
}

// LedgerServiceClient is the client API for the ledger service.
type LedgerServiceClient interface {
	SubmitQuestion(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetCount(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error)
	ListRecords(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error)
	ListNotifications(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type ledgerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLedgerServiceClient returns a client bound to cc.
func NewLedgerServiceClient(cc grpc.ClientConnInterface) LedgerServiceClient {
	return &ledgerServiceClient{cc: cc}
}

func (c *ledgerServiceClient) SubmitQuestion(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, LedgerService_SubmitQuestion_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) GetCount(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, LedgerService_GetCount_FullMethodName, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerServiceClient) ListRecords(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[wrapperspb.BytesValue], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &LedgerService_ServiceDesc.Streams[0], LedgerService_ListRecords_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *ledgerServiceClient) ListNotifications(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &LedgerService_ServiceDesc.Streams[1], LedgerService_ListNotifications_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.UInt64Value, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
