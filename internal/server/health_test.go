package server

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T, h *HealthServer) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	served := make(chan struct{})
	go func() {
		defer close(served)
		_ = h.Serve(lis)
	}()
	t.Cleanup(func() {
		h.Stop()
		<-served
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthServer_ServingWhenChecksPass(t *testing.T) {
	h := NewHealthServer("", time.Hour, zaptest.NewLogger(t))
	h.AddCheck("store", func(context.Context) error { return nil })
	client := startHealth(t, h)

	require.Eventually(t, func() bool {
		return status(t, client, SessionService) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, ""))
}

func TestHealthServer_ProbeReflectsFailures(t *testing.T) {
	h := NewHealthServer("", time.Hour, zaptest.NewLogger(t))
	var broken atomic.Bool
	h.AddCheck("redis", func(context.Context) error {
		if broken.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	h.AddCheck("postgres", func(context.Context) error { return nil })
	client := startHealth(t, h)

	broken.Store(true)
	assert.Equal(t, []string{"redis"}, h.Probe(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, SessionService))

	broken.Store(false)
	assert.Empty(t, h.Probe(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, client, SessionService))
}

func TestHealthServer_Drain(t *testing.T) {
	h := NewHealthServer("", time.Hour, zaptest.NewLogger(t))
	client := startHealth(t, h)
	require.Eventually(t, func() bool {
		return status(t, client, SessionService) == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	h.Drain()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, client, SessionService))
}

func TestHealthServer_StartBadAddr(t *testing.T) {
	h := NewHealthServer("256.0.0.1:-1", time.Hour, zaptest.NewLogger(t))
	assert.Error(t, h.Start())
}
