package grpcledger

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// LedgerServer is the server API for the Ledger gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package does
// not require a protoc/codegen toolchain: Anchor takes a JSON-encoded anchor
// request and returns a transaction id; Fetch takes a transaction id and
// returns a JSON-encoded record.
//
// Proto definition: ledger.proto.
type LedgerServer interface {
	Anchor(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Fetch(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedLedgerServer can be embedded to have forward compatible implementations.
type UnimplementedLedgerServer struct{}

func (UnimplementedLedgerServer) Anchor(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Anchor not implemented")
}
func (UnimplementedLedgerServer) Fetch(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Fetch not implemented")
}

// RegisterLedgerServer registers the Ledger service on a gRPC server.
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&Ledger_ServiceDesc, srv)
}

// LedgerClient is the client API for the Ledger gRPC service.
type LedgerClient interface {
	Anchor(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Fetch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type ledgerClient struct{ cc grpc.ClientConnInterface }

func NewLedgerClient(cc grpc.ClientConnInterface) LedgerClient { return &ledgerClient{cc: cc} }

func (c *ledgerClient) Anchor(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, "/daugherty.certify.ledger.v1.Ledger/Anchor", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ledgerClient) Fetch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, "/daugherty.certify.ledger.v1.Ledger/Fetch", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _Ledger_Anchor_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).Anchor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/daugherty.certify.ledger.v1.Ledger/Anchor"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServer).Anchor(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _Ledger_Fetch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LedgerServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/daugherty.certify.ledger.v1.Ledger/Fetch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(LedgerServer).Fetch(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Ledger_ServiceDesc is the grpc.ServiceDesc for the Ledger service.
var Ledger_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "daugherty.certify.ledger.v1.Ledger",
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Anchor", Handler: _Ledger_Anchor_Handler},
		{MethodName: "Fetch", Handler: _Ledger_Fetch_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger.proto",
}
