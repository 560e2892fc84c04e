package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"interview-transcript-service/internal/observability/metrics"
)

func TestHandler_Endpoints(t *testing.T) {
	ready := false
	h := Handler(func() bool { return ready })

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}

	ready = true
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected ready once flag set, got %d", rec.Code)
	}
}

func TestUnaryServerInterceptor_PassesThrough(t *testing.T) {
	interceptor := UnaryServerInterceptor(metrics.DefaultMetrics)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "resp", nil
	})
	if err != nil || resp != "resp" {
		t.Errorf("expected passthrough, got %v, %v", resp, err)
	}

	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound to propagate, got %v", err)
	}
}

func TestStreamServerInterceptor_PassesThrough(t *testing.T) {
	interceptor := StreamServerInterceptor(metrics.DefaultMetrics)
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}

	called := false
	err := interceptor(nil, nil, info, func(srv interface{}, ss grpc.ServerStream) error {
		called = true
		return status.Error(codes.Canceled, "client went away")
	})
	if !called {
		t.Error("expected handler to be called")
	}
	if status.Code(err) != codes.Canceled {
		t.Errorf("expected Canceled to propagate, got %v", err)
	}
}
