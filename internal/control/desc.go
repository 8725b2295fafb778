package control

import (
	"context"

	"google.golang.org/grpc"

	"go.klb.dev/cumulus/internal/message"
)

const (
	serviceName = "cumulus.v1.Control"

	methodStatus      = "/" + serviceName + "/Status"
	methodSetOptions  = "/" + serviceName + "/SetOptions"
	methodClear       = "/" + serviceName + "/Clear"
	methodPasteSignal = "/" + serviceName + "/PasteSignal"
	methodWatch       = "/" + serviceName + "/Watch"

	// sourceHeader carries the caller's name in request metadata.
	sourceHeader = "x-cumulus-source"
)

// ControlServer is the server API of the control service.
type ControlServer interface {
	Status(context.Context, *message.StatusRequest) (*message.StatusResponse, error)
	SetOptions(context.Context, *message.SetOptionsRequest) (*message.StatusResponse, error)
	Clear(context.Context, *message.ClearRequest) (*message.StatusResponse, error)
	PasteSignal(context.Context, *message.PasteSignalRequest) (*message.PasteSignalResponse, error)
	Watch(*message.WatchRequest, grpc.ServerStream) error
}

// Register adds the control service to s.
func Register(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary adapts a typed ControlServer method to a grpc.MethodHandler.
func unary[Req, Resp any](method string, call func(ControlServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ControlServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(message.WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ControlServer).Watch(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unary(methodStatus, ControlServer.Status)},
		{MethodName: "SetOptions", Handler: unary(methodSetOptions, ControlServer.SetOptions)},
		{MethodName: "Clear", Handler: unary(methodClear, ControlServer.Clear)},
		{MethodName: "PasteSignal", Handler: unary(methodPasteSignal, ControlServer.PasteSignal)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "cumulus/v1/control",
}
