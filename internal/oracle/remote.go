package oracle

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

// RemoteOptions configures a RemoteOracle
type RemoteOptions struct {
	MaxRetries      int
	Backoff         utils.BackoffStrategy
	DiagnosticLines int
	Breaker         *Breaker // optional; fails fast while the server is down
}

// RemoteOracle evaluates candidates on an oracle server over gRPC
type RemoteOracle struct {
	conn   grpc.ClientConnInterface
	closer func() error
	opts   RemoteOptions
}

// NewRemoteOracle uses an existing connection
func NewRemoteOracle(conn grpc.ClientConnInterface, opts RemoteOptions) *RemoteOracle {
	if opts.Backoff == nil {
		opts.Backoff = utils.BackoffFromConfig("jitter", 2*time.Second, 0)
	}
	if opts.DiagnosticLines <= 0 {
		opts.DiagnosticLines = DefaultDiagnosticLines
	}
	return &RemoteOracle{conn: conn, opts: opts}
}

// DialRemote connects to an oracle server
func DialRemote(addr string, opts RemoteOptions, dialOpts ...grpc.DialOption) (*RemoteOracle, error) {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	r := NewRemoteOracle(conn, opts)
	r.closer = conn.Close
	return r, nil
}

// Close shuts down the connection if the oracle owns it
func (r *RemoteOracle) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

// Evaluate sends the request, retrying while the server is unavailable
func (r *RemoteOracle) Evaluate(ctx context.Context, req Request) (Response, error) {
	in, err := EncodeRequest(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	if b := r.opts.Breaker; b != nil && !b.Allow(time.Now()) {
		return Response{Failure: NewFailure(models.FailureRuntime,
			"oracle unavailable: circuit open", r.opts.DiagnosticLines)}, nil
	}

	for attempt := 0; ; attempt++ {
		out := new(structpb.Struct)
		err := r.conn.Invoke(ctx, evaluateMethod, in, out)
		if err == nil {
			r.recordReachable(true)
			resp, derr := DecodeResponse(out)
			if derr != nil {
				return Response{Failure: NewFailure(models.FailureRuntime, "bad response: "+derr.Error(), r.opts.DiagnosticLines)}, nil
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}

		st := status.Convert(err)
		switch st.Code() {
		case codes.Unavailable:
			if attempt >= r.opts.MaxRetries {
				r.recordReachable(false)
				return Response{Failure: NewFailure(models.FailureRuntime,
					fmt.Sprintf("oracle unavailable after %d attempts: %s", attempt+1, st.Message()),
					r.opts.DiagnosticLines)}, nil
			}
			delay := r.opts.Backoff.NextDelay(attempt)
			logger.Warn("oracle unavailable, retrying", "label", req.Label, "attempt", attempt+1, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Response{}, ctx.Err()
			case <-timer.C:
			}
		case codes.DeadlineExceeded:
			return Response{Failure: NewFailure(models.FailureTimeout, st.Message(), r.opts.DiagnosticLines)}, nil
		default:
			return Response{Failure: NewFailure(models.FailureRuntime,
				fmt.Sprintf("%s: %s", st.Code(), st.Message()), r.opts.DiagnosticLines)}, nil
		}
	}
}

func (r *RemoteOracle) recordReachable(ok bool) {
	b := r.opts.Breaker
	if b == nil {
		return
	}
	if ok {
		b.RecordSuccess(time.Now())
	} else {
		b.RecordFailure(time.Now())
	}
}
