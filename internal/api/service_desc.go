package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mirador.investigator.v1.IncidentInvestigator"

// Method names of the IncidentInvestigator service.
const (
	MethodInvestigate         = "Investigate"
	MethodGetInvestigation    = "GetInvestigation"
	MethodListInvestigations  = "ListInvestigations"
	MethodResumeInvestigation = "ResumeInvestigation"
)

// InvestigatorServer is the server API. Requests and responses are
// google.protobuf.Struct documents using the JSON field names of the models.
type InvestigatorServer interface {
	Investigate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInvestigation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListInvestigations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResumeInvestigation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterInvestigatorServer registers srv on s.
func RegisterInvestigatorServer(s grpc.ServiceRegistrar, srv InvestigatorServer) {
	s.RegisterService(&investigatorServiceDesc, srv)
}

type unaryCall func(srv InvestigatorServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(InvestigatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(InvestigatorServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var investigatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvestigatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodInvestigate,
			Handler: unaryHandler(MethodInvestigate, func(srv InvestigatorServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.Investigate(ctx, req)
			}),
		},
		{
			MethodName: MethodGetInvestigation,
			Handler: unaryHandler(MethodGetInvestigation, func(srv InvestigatorServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetInvestigation(ctx, req)
			}),
		},
		{
			MethodName: MethodListInvestigations,
			Handler: unaryHandler(MethodListInvestigations, func(srv InvestigatorServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.ListInvestigations(ctx, req)
			}),
		},
		{
			MethodName: MethodResumeInvestigation,
			Handler: unaryHandler(MethodResumeInvestigation, func(srv InvestigatorServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.ResumeInvestigation(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mirador/investigator/v1/investigator.proto",
}

// InvestigatorClient calls the IncidentInvestigator service.
type InvestigatorClient struct {
	cc grpc.ClientConnInterface
}

// NewInvestigatorClient wraps an established connection.
func NewInvestigatorClient(cc grpc.ClientConnInterface) *InvestigatorClient {
	return &InvestigatorClient{cc: cc}
}

func (c *InvestigatorClient) invoke(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Investigate runs an investigation for the incident document in req.
func (c *InvestigatorClient) Investigate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodInvestigate, req, opts...)
}

// GetInvestigation fetches a stored result by {"incident_id"}.
func (c *InvestigatorClient) GetInvestigation(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetInvestigation, req, opts...)
}

// ListInvestigations lists stored results filtered by {"service", "status", "limit"}.
func (c *InvestigatorClient) ListInvestigations(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodListInvestigations, req, opts...)
}

// ResumeInvestigation continues a checkpointed run by {"incident_id"}.
func (c *InvestigatorClient) ResumeInvestigation(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResumeInvestigation, req, opts...)
}
