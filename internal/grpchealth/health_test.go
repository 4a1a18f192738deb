package grpchealth

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/example/leaf-check/internal/container"
	"github.com/example/leaf-check/internal/crop"
)

type fakeRegistry struct {
	loadErrs map[string]error
}

func (f *fakeRegistry) Crops() []container.Crop {
	return []container.Crop{{Label: "rice", Name: "Rice"}, {Label: "pulse", Name: "Pulse"}}
}

func (f *fakeRegistry) Handler(label string) crop.Handler {
	if err := f.loadErrs[label]; err != nil {
		return crop.NewUnavailableHandler(label, err.Error())
	}
	return &readyHandler{UnavailableHandler: crop.NewUnavailableHandler(label, "")}
}

type readyHandler struct {
	*crop.UnavailableHandler
}

func (readyHandler) LoadModel(context.Context) error { return nil }

func startServer(t *testing.T, checker *Checker) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	checker.Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, conn, err := Dial(context.Background(), "bufnet", zap.NewNop(),
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return client
}

func TestRefreshPublishesPerCropStatus(t *testing.T) {
	registry := &fakeRegistry{loadErrs: map[string]error{"pulse": errors.New("model under development")}}
	checker := NewChecker(registry, zap.NewNop())
	client := startServer(t, checker)
	ctx := context.Background()

	status, err := Check(ctx, client, "rice")
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	ready := checker.Refresh(ctx)
	require.Equal(t, map[string]bool{"rice": true, "pulse": false}, ready)

	status, err = Check(ctx, client, "rice")
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	status, err = Check(ctx, client, "pulse")
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	status, err = Check(ctx, client, "")
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

func TestCheckUnknownService(t *testing.T) {
	client := startServer(t, NewChecker(&fakeRegistry{}, nil))

	_, err := Check(context.Background(), client, "wheat")
	require.Error(t, err)
}

func TestShutdownStopsServing(t *testing.T) {
	checker := NewChecker(&fakeRegistry{}, nil)
	client := startServer(t, checker)
	checker.Refresh(context.Background())

	checker.Shutdown()

	status, err := Check(context.Background(), client, "rice")
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)
}
