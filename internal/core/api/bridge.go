package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the host bridge.
const ServiceName = "stashkeeper.bridge.v1.HostBridge"

const (
	loadWorldMethod      = "/" + ServiceName + "/LoadWorld"
	touchContainerMethod = "/" + ServiceName + "/TouchContainer"
)

// HostBridgeServer is the server API for the host bridge. Requests and
// responses are google.protobuf.Struct documents.
type HostBridgeServer interface {
	LoadWorld(context.Context, *structpb.Struct) (*structpb.Struct, error)
	TouchContainer(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the host bridge for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HostBridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadWorld", Handler: loadWorldHandler},
		{MethodName: "TouchContainer", Handler: touchContainerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stashkeeper/bridge/v1/bridge.proto",
}

// RegisterHostBridgeServer registers srv on s.
func RegisterHostBridgeServer(s grpc.ServiceRegistrar, srv HostBridgeServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func loadWorldHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostBridgeServer).LoadWorld(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: loadWorldMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HostBridgeServer).LoadWorld(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func touchContainerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HostBridgeServer).TouchContainer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: touchContainerMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HostBridgeServer).TouchContainer(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// HostBridgeClient calls the host bridge over a client connection.
type HostBridgeClient struct {
	cc grpc.ClientConnInterface
}

// NewHostBridgeClient creates a client on cc.
func NewHostBridgeClient(cc grpc.ClientConnInterface) *HostBridgeClient {
	return &HostBridgeClient{cc: cc}
}

// LoadWorld uploads a world snapshot.
func (c *HostBridgeClient) LoadWorld(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, loadWorldMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TouchContainer reports a container event.
func (c *HostBridgeClient) TouchContainer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, touchContainerMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
