package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "pagetrans.v1.TranslationService"

const (
	translateMethod     = "/" + ServiceName + "/Translate"
	listLanguagesMethod = "/" + ServiceName + "/ListLanguages"
)

// TranslationServiceServer is the server API of pagetrans.v1.TranslationService.
// Messages are google.protobuf.Struct so the service needs no generated code.
type TranslationServiceServer interface {
	Translate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListLanguages(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterTranslationServiceServer registers srv on s.
func RegisterTranslationServiceServer(s grpc.ServiceRegistrar, srv TranslationServiceServer) {
	s.RegisterService(&translationServiceDesc, srv)
}

var translationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TranslationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Translate", Handler: translateHandler},
		{MethodName: "ListLanguages", Handler: listLanguagesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pagetrans/v1/translation.proto",
}

func translateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranslationServiceServer).Translate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: translateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TranslationServiceServer).Translate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listLanguagesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TranslationServiceServer).ListLanguages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listLanguagesMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TranslationServiceServer).ListLanguages(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls pagetrans.v1.TranslationService.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an open connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Translate runs one pipeline request on the server.
func (c *Client) Translate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, translateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLanguages returns the language menu.
func (c *Client) ListLanguages(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, listLanguagesMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RecoveryInterceptor turns a panicking handler into codes.Internal so one
// bad request cannot take the server down.
func RecoveryInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(logrus.Fields{
					"method": info.FullMethod,
					"panic":  fmt.Sprint(r),
				}).Error("[gRPC] handler panicked")
				resp, err = nil, status.Errorf(codes.Internal, "internal error: %v", r)
			}
		}()
		return handler(ctx, req)
	}
}
