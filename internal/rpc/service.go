// Package rpc exposes cognitive sessions over gRPC. Messages are
// google.protobuf.Struct values keyed by the in-process field names, so the
// service needs no generated code.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "affective.v1.CognitiveService"

// Request keys.
const (
	FieldSessionID = "sessionId"
	FieldTask      = "task"
	FieldContext   = "context"
	FieldFeedback  = "feedback"
	FieldSuccess   = "success"
	FieldOutcome   = "outcome"
	FieldRemoved   = "removed"

	FieldConcept      = "concept"
	FieldDefinition   = "definition"
	FieldAssociations = "associations"
)

// #region server-interface
// CognitiveServiceServer is implemented by Server.
type CognitiveServiceServer interface {
	ProcessTask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LearnFromExperience(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCognitiveSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cleanup(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LearnConcept(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterCognitiveServiceServer registers srv on s.
func RegisterCognitiveServiceServer(s grpc.ServiceRegistrar, srv CognitiveServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryCall func(CognitiveServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CognitiveServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the CognitiveService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CognitiveServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ProcessTask", CognitiveServiceServer.ProcessTask),
		unary("LearnFromExperience", CognitiveServiceServer.LearnFromExperience),
		unary("GetCognitiveSummary", CognitiveServiceServer.GetCognitiveSummary),
		unary("Cleanup", CognitiveServiceServer.Cleanup),
		unary("LearnConcept", CognitiveServiceServer.LearnConcept),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "affective/v1/cognitive.proto",
}

// #endregion server-interface

// #region client-interface
// CognitiveServiceClient is the raw client side of the service.
type CognitiveServiceClient interface {
	ProcessTask(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	LearnFromExperience(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetCognitiveSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Cleanup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	LearnConcept(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type cognitiveServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCognitiveServiceClient wraps a connection.
func NewCognitiveServiceClient(cc grpc.ClientConnInterface) CognitiveServiceClient {
	return &cognitiveServiceClient{cc: cc}
}

func (c *cognitiveServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cognitiveServiceClient) ProcessTask(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ProcessTask", in, opts)
}

func (c *cognitiveServiceClient) LearnFromExperience(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "LearnFromExperience", in, opts)
}

func (c *cognitiveServiceClient) GetCognitiveSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetCognitiveSummary", in, opts)
}

func (c *cognitiveServiceClient) Cleanup(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Cleanup", in, opts)
}

func (c *cognitiveServiceClient) LearnConcept(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "LearnConcept", in, opts)
}

// #endregion client-interface
