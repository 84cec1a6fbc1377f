package grpcpresentation

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T, probe Probe) (*Server, grpc_health_v1.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(probe, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, lis)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, c grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("health check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthFollowsProbe(t *testing.T) {
	var down atomic.Bool
	probe := func(context.Context) error {
		if down.Load() {
			return errors.New("store unreachable")
		}
		return nil
	}
	srv, client := startServer(t, probe)

	if got := check(t, client, ServiceName); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s, want SERVING", got)
	}

	down.Store(true)
	if srv.Check(context.Background()) {
		t.Fatal("Check should report failure")
	}
	if got := check(t, client, ""); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %s, want NOT_SERVING", got)
	}
}

func TestNilProbeIsServing(t *testing.T) {
	_, client := startServer(t, nil)
	if got := check(t, client, ""); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %s, want SERVING", got)
	}
}
