package codec

import (
	"context"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/potability/internal/ensemble"
)

// #region wire
// PredictMethod is the full gRPC method name served by predictor sidecars.
// Requests and responses are google.protobuf.Struct:
//
//	request:  {"model": "svm", "features": [7, 150, ...]}
//	response: {"label": 1}
const PredictMethod = "/potability.v1.PredictorService/Predict"

// invoker is the subset of *grpc.ClientConn used by the client.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #endregion wire

// #region client-struct
// CodecClient wraps the gRPC connection to a predictor service.
type CodecClient struct {
	conn        *grpc.ClientConn
	client      invoker
	callTimeout time.Duration
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to a predictor gRPC server.
func NewCodecClient(addr string, callTimeout time.Duration) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{
		conn:        conn,
		client:      conn,
		callTimeout: callTimeout,
	}, nil
}

// NewCodecClientWithService creates a CodecClient over an injected invoker.
// Used for testing without a real gRPC connection.
func NewCodecClientWithService(svc invoker, callTimeout time.Duration) *CodecClient {
	return &CodecClient{client: svc, callTimeout: callTimeout}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region predict
// Predict asks the service to evaluate the named model on features.
func (c *CodecClient) Predict(ctx context.Context, model string, features []float64) (ensemble.Label, error) {
	values := make([]any, len(features))
	for i, f := range features {
		values[i] = f
	}
	req, err := structpb.NewStruct(map[string]any{
		"model":    model,
		"features": values,
	})
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	resp := &structpb.Struct{}
	if err := c.client.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return 0, fmt.Errorf("predict rpc %s: %w", model, err)
	}

	v, ok := resp.GetFields()["label"]
	if !ok {
		return 0, fmt.Errorf("predict rpc %s: response has no label", model)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, fmt.Errorf("predict rpc %s: label is not an integer: %v", model, v.AsInterface())
	}
	return ensemble.Label(n.NumberValue), nil
}

// Predictor binds the client to one model name.
func (c *CodecClient) Predictor(model string) ensemble.Predictor {
	return ensemble.PredictorFunc(func(ctx context.Context, features []float64) (ensemble.Label, error) {
		return c.Predict(ctx, model, features)
	})
}

// #endregion predict
