package api

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/miradorstack/anomaly-engine/internal/config"
	"github.com/miradorstack/anomaly-engine/internal/grpc/anomalyv1"
)

type unimplementedDetector struct {
	anomalyv1.UnimplementedAnomalyDetectorServer
}

func TestServerHealthFollowsSetServing(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	srv := NewServerWithListener(config.ServerConfig{GracefulTimeout: time.Second}, lis, unimplementedDetector{})
	go func() { _ = srv.Start() }()
	defer srv.Shutdown(context.Background())

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	health := healthpb.NewHealthClient(conn)
	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("health check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
	srv.SetServing(true)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", got)
	}

	client := anomalyv1.NewAnomalyDetectorClient(conn)
	if _, err := client.Retrain(context.Background(), &emptypb.Empty{}); status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected unimplemented, got %v", err)
	}
	if srv.GracefulTimeout() != time.Second || srv.Address() != "bufconn" {
		t.Fatalf("unexpected server metadata %v %q", srv.GracefulTimeout(), srv.Address())
	}
}
