// Package grpctime exposes an anchor.TimeSource over gRPC, so network and
// ledger anchors can live in a separate daemon.
package grpctime

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TimeAnchorServer is the server API for the TimeAnchor gRPC service.
//
// We intentionally use protobuf well-known wrapper types so this package does
// not require a protoc/codegen toolchain. The request is the source name; the
// reply is a JSON-encoded stamp.
//
// Proto definition: timeanchor.proto.
type TimeAnchorServer interface {
	Fetch(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
}

// UnimplementedTimeAnchorServer can be embedded to have forward compatible implementations.
type UnimplementedTimeAnchorServer struct{}

func (UnimplementedTimeAnchorServer) Fetch(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Fetch not implemented")
}

// RegisterTimeAnchorServer registers the TimeAnchor service on a gRPC server.
func RegisterTimeAnchorServer(s grpc.ServiceRegistrar, srv TimeAnchorServer) {
	s.RegisterService(&TimeAnchor_ServiceDesc, srv)
}

// TimeAnchorClient is the client API for the TimeAnchor gRPC service.
type TimeAnchorClient interface {
	Fetch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type timeAnchorClient struct{ cc grpc.ClientConnInterface }

func NewTimeAnchorClient(cc grpc.ClientConnInterface) TimeAnchorClient {
	return &timeAnchorClient{cc: cc}
}

func (c *timeAnchorClient) Fetch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	err := c.cc.Invoke(ctx, "/svca.genesis.anchor.grpctime.v1.TimeAnchor/Fetch", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _TimeAnchor_Fetch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TimeAnchorServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/svca.genesis.anchor.grpctime.v1.TimeAnchor/Fetch"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TimeAnchorServer).Fetch(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// TimeAnchor_ServiceDesc is the grpc.ServiceDesc for TimeAnchor service.
var TimeAnchor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "svca.genesis.anchor.grpctime.v1.TimeAnchor",
	HandlerType: (*TimeAnchorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: _TimeAnchor_Fetch_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "timeanchor.proto",
}
