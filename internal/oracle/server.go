package oracle

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

const (
	// ServiceName is the fully qualified gRPC service name
	ServiceName    = "bitwidth.v1.Oracle"
	evaluateMethod = "/" + ServiceName + "/Evaluate"
)

// evaluator is the server-side handler type of the oracle service
type evaluator interface {
	Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*evaluator)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bitwidth/v1/oracle.proto",
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(evaluator).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(evaluator).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes a local Oracle over gRPC. Calls are serialized because the
// wrapped oracle owns the shared build files.
type Server struct {
	mu     sync.Mutex
	oracle Oracle
}

// NewServer wraps an oracle
func NewServer(o Oracle) *Server {
	return &Server{oracle: o}
}

// Register adds the oracle service to a gRPC server
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Evaluate implements the oracle service
func (s *Server) Evaluate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := DecodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	// labels name files and script lines on this host
	req.Label = utils.SanitizeLabel(req.Label)

	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.oracle.Evaluate(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	if resp.Failure != nil {
		logger.Info("evaluation failed", "label", req.Label, "failure_kind", resp.Failure.Kind)
	} else {
		logger.Info("evaluation done", "label", req.Label, "metric", resp.Metric)
	}

	out, err := EncodeResponse(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}
