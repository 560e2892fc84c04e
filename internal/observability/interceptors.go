package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"interview-transcript-service/internal/observability/logging"
	"interview-transcript-service/internal/observability/metrics"
)

// rpcObserver records one finished RPC.
type rpcObserver struct {
	m   *metrics.Metrics
	log zerolog.Logger
}

func newRPCObserver(m *metrics.Metrics) rpcObserver {
	return rpcObserver{m: m, log: logging.WithComponent("grpc")}
}

// done records the call and returns its status code. Failed calls log at
// warn, the rest at debug; health watch streams would otherwise flood info.
func (o rpcObserver) done(kind, method string, start time.Time, err error) codes.Code {
	duration := time.Since(start)
	code := status.Code(err)
	o.m.RecordRPC(method, code.String(), duration.Seconds())

	ev := o.log.Debug()
	if code != codes.OK && code != codes.Canceled {
		ev = o.log.Warn().Err(err)
	}
	ev.Str("kind", kind).
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", duration).
		Msg("gRPC call finished")
	return code
}

// UnaryServerInterceptor returns a gRPC unary interceptor for metrics and logging.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	o := newRPCObserver(m)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		o.done("unary", info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and
// logging. Health watchers are long-lived streams.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	o := newRPCObserver(m)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		o.done("stream", info.FullMethod, start, err)
		return err
	}
}
