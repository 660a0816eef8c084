package sipclient

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"sipbacktest/internal/api"
)

// GRPCClient calls the sip.Backtest gRPC service.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

// NewGRPCClient wraps an established connection.
func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// Compare runs a strategy comparison over gRPC.
func (c *GRPCClient) Compare(ctx context.Context, req CompareRequest, opts ...grpc.CallOption) (*CompareResponse, error) {
	var resp CompareResponse
	if err := c.invoke(ctx, api.CompareMethod, req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Backtest runs a single policy over gRPC.
func (c *GRPCClient) Backtest(ctx context.Context, req BacktestRequest, opts ...grpc.CallOption) (*BacktestResponse, error) {
	var resp BacktestResponse
	if err := c.invoke(ctx, api.BacktestMethod, req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GRPCClient) invoke(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := api.ToStruct(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return err
	}
	return api.FromStruct(out, resp)
}
