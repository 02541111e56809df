package codec

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/potability/internal/ensemble"
)

// #region service-desc
// PredictorServer is the server side of PredictMethod.
type PredictorServer interface {
	Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "potability.v1.PredictorService",
	HandlerType: (*PredictorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "potability/v1/predictor.proto",
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictorServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PredictMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictorServer).Predict(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Register attaches srv to a gRPC server.
func Register(s *grpc.Server, srv PredictorServer) {
	s.RegisterService(&serviceDesc, srv)
}

// #endregion service-desc

// #region server
// Server exposes local predictors by artifact name.
type Server struct {
	models map[string]ensemble.Predictor
	logger *slog.Logger
}

// NewServer serves the given predictors. The map is copied.
func NewServer(models map[string]ensemble.Predictor, logger *slog.Logger) *Server {
	m := make(map[string]ensemble.Predictor, len(models))
	for k, v := range models {
		m[k] = v
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{models: m, logger: logger}
}

// Predict evaluates one model on the request's features.
func (s *Server) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	name := fields["model"].GetStringValue()
	p, ok := s.models[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown model %q", name)
	}

	list := fields["features"].GetListValue()
	if list == nil {
		return nil, status.Error(codes.InvalidArgument, "features must be a list")
	}
	features := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "feature %d is not a number", i)
		}
		features[i] = n.NumberValue
	}

	label, err := p.Predict(ctx, features)
	if err != nil {
		s.logger.Warn("remote predict failed", "model", name, "error", err)
		return nil, status.Errorf(codes.Internal, "predict %s: %v", name, err)
	}
	return structpb.NewStruct(map[string]any{"label": float64(label)})
}

// #endregion server
