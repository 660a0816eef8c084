package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Full method names of the sip.Backtest service. Messages are
// google.protobuf.Struct carrying the same fields as the HTTP JSON bodies.
const (
	BacktestServiceName = "sip.Backtest"
	CompareMethod       = "/sip.Backtest/Compare"
	BacktestMethod      = "/sip.Backtest/Backtest"
)

// BacktestServer is the server API for the sip.Backtest service.
type BacktestServer interface {
	Compare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Backtest(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// BacktestServiceDesc describes sip.Backtest for grpc.Server registration.
var BacktestServiceDesc = grpc.ServiceDesc{
	ServiceName: BacktestServiceName,
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compare", Handler: compareHandler},
		{MethodName: "Backtest", Handler: backtestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sip/backtest.proto",
}

// RegisterBacktestServer registers srv on s.
func RegisterBacktestServer(s grpc.ServiceRegistrar, srv BacktestServer) {
	s.RegisterService(&BacktestServiceDesc, srv)
}

func compareHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Compare(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompareMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Compare(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func backtestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServer).Backtest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: BacktestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServer).Backtest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// BacktestService — gRPC adapter over Service.
// ---------------------------------------------------------------------------

var _ BacktestServer = (*BacktestService)(nil)

// BacktestService implements BacktestServer on top of a Service.
type BacktestService struct {
	svc *Service
}

// NewBacktestService creates a BacktestService backed by svc.
func NewBacktestService(svc *Service) *BacktestService {
	return &BacktestService{svc: svc}
}

// Compare implements sip.Backtest/Compare.
func (b *BacktestService) Compare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req CompareRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := b.svc.Compare(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return encodeResponse(resp)
}

// Backtest implements sip.Backtest/Backtest.
func (b *BacktestService) Backtest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req BacktestRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp, err := b.svc.Backtest(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return encodeResponse(resp)
}

func encodeResponse(v any) (*structpb.Struct, error) {
	out, err := ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func grpcError(err error) error {
	kind, _ := classify(err)
	switch kind {
	case kindInvalid:
		return status.Error(codes.InvalidArgument, err.Error())
	case kindNotFound:
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ToStruct converts a JSON-tagged value into a google.protobuf.Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into the JSON-tagged value pointed to by v.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// loggingInterceptor logs each unary call with its duration and status code.
func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		if code == codes.Internal || code == codes.Unknown {
			log.Error("grpc call", "method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start), "error", err)
		} else {
			log.Info("grpc call", "method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start))
		}
		return resp, err
	}
}
