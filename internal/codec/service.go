package codec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The inference service speaks google.protobuf.Struct on every method so
// that no generated stubs are needed on either side.
const (
	ServiceName = "cotherapist.inference.v1.Inference"

	methodGenerate      = "/" + ServiceName + "/Generate"
	methodEmbed         = "/" + ServiceName + "/Embed"
	methodScoreToxicity = "/" + ServiceName + "/ScoreToxicity"
)

// #region client-interface
// InferenceServiceClient is the client API for the inference service.
type InferenceServiceClient interface {
	Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ScoreToxicity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type inferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInferenceServiceClient binds the service methods to a connection.
func NewInferenceServiceClient(cc grpc.ClientConnInterface) InferenceServiceClient {
	return &inferenceServiceClient{cc: cc}
}

func (c *inferenceServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inferenceServiceClient) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGenerate, in, opts)
}

func (c *inferenceServiceClient) Embed(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodEmbed, in, opts)
}

func (c *inferenceServiceClient) ScoreToxicity(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodScoreToxicity, in, opts)
}

// #endregion client-interface

// #region server-interface
// InferenceServiceServer is the server API for the inference service.
type InferenceServiceServer interface {
	Generate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Embed(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ScoreToxicity(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterInferenceServiceServer attaches srv to s.
func RegisterInferenceServiceServer(s grpc.ServiceRegistrar, srv InferenceServiceServer) {
	s.RegisterService(&inferenceServiceDesc, srv)
}

func unaryHandler(method string, call func(InferenceServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InferenceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InferenceServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var inferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Generate",
			Handler: unaryHandler(methodGenerate, func(s InferenceServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Generate(ctx, in)
			}),
		},
		{
			MethodName: "Embed",
			Handler: unaryHandler(methodEmbed, func(s InferenceServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Embed(ctx, in)
			}),
		},
		{
			MethodName: "ScoreToxicity",
			Handler: unaryHandler(methodScoreToxicity, func(s InferenceServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.ScoreToxicity(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cotherapist/inference/v1/inference.proto",
}

// #endregion server-interface
