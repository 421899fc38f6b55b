// Package anomalyv1 holds the gRPC bindings for anomaly.v1.AnomalyDetector
// (see detector.proto). The service only uses well-known message types, so
// the descriptor, handlers and client are maintained by hand.
package anomalyv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AnomalyDetector_Score_FullMethodName   = "/anomaly.v1.AnomalyDetector/Score"
	AnomalyDetector_Retrain_FullMethodName = "/anomaly.v1.AnomalyDetector/Retrain"
)

// AnomalyDetectorClient is the client API for the AnomalyDetector service.
type AnomalyDetectorClient interface {
	Score(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Retrain(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type anomalyDetectorClient struct {
	cc grpc.ClientConnInterface
}

func NewAnomalyDetectorClient(cc grpc.ClientConnInterface) AnomalyDetectorClient {
	return &anomalyDetectorClient{cc}
}

func (c *anomalyDetectorClient) Score(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AnomalyDetector_Score_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *anomalyDetectorClient) Retrain(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AnomalyDetector_Retrain_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// AnomalyDetectorServer is the server API for the AnomalyDetector service.
type AnomalyDetectorServer interface {
	Score(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Retrain(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// UnimplementedAnomalyDetectorServer can be embedded for forward compatibility.
type UnimplementedAnomalyDetectorServer struct{}

func (UnimplementedAnomalyDetectorServer) Score(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Score not implemented")
}

func (UnimplementedAnomalyDetectorServer) Retrain(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Retrain not implemented")
}

func RegisterAnomalyDetectorServer(s grpc.ServiceRegistrar, srv AnomalyDetectorServer) {
	s.RegisterService(&AnomalyDetector_ServiceDesc, srv)
}

func _AnomalyDetector_Score_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnomalyDetectorServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AnomalyDetector_Score_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnomalyDetectorServer).Score(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnomalyDetector_Retrain_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnomalyDetectorServer).Retrain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AnomalyDetector_Retrain_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AnomalyDetectorServer).Retrain(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// AnomalyDetector_ServiceDesc is the grpc.ServiceDesc for the AnomalyDetector service.
var AnomalyDetector_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "anomaly.v1.AnomalyDetector",
	HandlerType: (*AnomalyDetectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Score",
			Handler:    _AnomalyDetector_Score_Handler,
		},
		{
			MethodName: "Retrain",
			Handler:    _AnomalyDetector_Retrain_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "detector.proto",
}
