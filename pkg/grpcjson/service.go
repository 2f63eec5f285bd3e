package grpcjson

import (
	"context"

	"google.golang.org/grpc"
)

// UnaryMethod builds the method descriptor for one unary RPC whose request and response are
// plain structs. S is the service interface the server is registered under.
func UnaryMethod[S any, Req any, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// Invoke calls a unary method over conn using the JSON codec.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, service, name string, req, resp interface{}, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(Name))
	return conn.Invoke(ctx, "/"+service+"/"+name, req, resp, opts...)
}
