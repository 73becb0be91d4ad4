package grpcservice

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/clipstash/internal/message"
)

const (
	serviceName      = "clipstash.v1.HistoryService"
	dispatchMethod   = "/" + serviceName + "/Dispatch"
	connectMethod    = "/" + serviceName + "/Connect"
	connectStreamIdx = 0
)

// HistoryServer is the server API for the history service.
type HistoryServer interface {
	// Dispatch answers one request envelope.
	Dispatch(context.Context, *message.Request) (*message.Response, error)
	// Connect holds a named channel open and streams change events down it
	// until the client goes away.
	Connect(*message.Request, grpc.ServerStream) error
}

// RegisterHistoryServer registers srv on s.
func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&historyServiceDesc, srv)
}

var historyServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Connect", Handler: connectHandler, ServerStreams: true},
	},
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HistoryServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: dispatchMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HistoryServer).Dispatch(ctx, req.(*message.Request))
	}
	return interceptor(ctx, in, info, handler)
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	in := new(message.Request)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(HistoryServer).Connect(in, stream)
}
