package grpchealth

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/leaf-check/internal/container"
	"github.com/example/leaf-check/internal/crop"
	"github.com/example/leaf-check/internal/logging"
)

// CropRegistry lists crops and builds their handlers.
type CropRegistry interface {
	Crops() []container.Crop
	Handler(label string) crop.Handler
}

// Checker reports per-crop model readiness over grpc.health.v1. The overall service ("")
// is SERVING for as long as the process runs; each crop label is a named service.
type Checker struct {
	server *health.Server
	crops  CropRegistry
	logger *zap.Logger
}

// NewChecker creates a checker with every crop NOT_SERVING until Refresh runs.
func NewChecker(crops CropRegistry, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{server: health.NewServer(), crops: crops, logger: logger.Named("grpc_health")}
	for _, cr := range crops.Crops() {
		c.server.SetServingStatus(cr.Label, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return c
}

// Register exposes the health service on s.
func (c *Checker) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, c.server)
}

// Refresh loads each crop's model, which also warms the model cache, and publishes the
// outcome. It returns the serving state per crop label.
func (c *Checker) Refresh(ctx context.Context) map[string]bool {
	ready := make(map[string]bool)
	for _, cr := range c.crops.Crops() {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		handler := c.crops.Handler(cr.Label)
		if handler != nil {
			if err := handler.LoadModel(ctx); err != nil {
				c.logger.Warn("crop model not ready", zap.String("crop", cr.Label), zap.Error(err))
			} else {
				status = healthpb.HealthCheckResponse_SERVING
			}
		}
		ready[cr.Label] = status == healthpb.HealthCheckResponse_SERVING
		c.server.SetServingStatus(cr.Label, status)
	}
	return ready
}

// Shutdown flips every service to NOT_SERVING.
func (c *Checker) Shutdown() {
	c.server.Shutdown()
}

// Dial connects to a health endpoint, as used by the healthcheck command.
func Dial(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (healthpb.HealthClient, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)
	conn, err := grpc.DialContext(dialCtx, addr, opts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpchealth.dial", "", err)
		logger.Error("failed to dial health endpoint", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return healthpb.NewHealthClient(conn), conn, nil
}

// Check asks for the status of service ("" is the whole server).
func Check(ctx context.Context, client healthpb.HealthClient, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, logging.NewOperationError("grpchealth.check", "", err)
	}
	return resp.GetStatus(), nil
}
