package handler

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestGRPCHealth_FollowsStore(t *testing.T) {
	var down atomic.Bool
	h := NewGRPCHandler(func(ctx context.Context) error {
		if down.Load() {
			return errors.New("store unreachable")
		}
		return nil
	}, zerolog.Nop())

	lis := bufconn.Listen(1 << 20)
	srv := h.NewServer()
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	client := grpc_health_v1.NewHealthClient(conn)
	ctx := context.Background()

	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	down.Store(true)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, h.Probe(ctx))
	resp, err = client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	down.Store(false)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, h.Probe(ctx))
}
