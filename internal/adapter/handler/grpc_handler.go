package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the health service name reported for the order engine.
const ServiceName = "pizzeria.orders"

// GRPCHandler reports serving status over grpc.health.v1, following the
// store's reachability.
type GRPCHandler struct {
	health *health.Server
	check  func(ctx context.Context) error
	logger zerolog.Logger
}

func NewGRPCHandler(check func(ctx context.Context) error, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		health: health.NewServer(),
		check:  check,
		logger: logger.With().Str("component", "grpc").Logger(),
	}
}

// NewServer builds a gRPC server with the health service registered.
func (h *GRPCHandler) NewServer() *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(h.logUnary))
	grpc_health_v1.RegisterHealthServer(s, h.health)
	h.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return s
}

// Probe runs one check and updates the reported status.
func (h *GRPCHandler) Probe(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	next := grpc_health_v1.HealthCheckResponse_SERVING
	if h.check != nil {
		if err := h.check(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("store unreachable, reporting not serving")
			next = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	h.setStatus(next)
	return next
}

// Watch probes every interval until ctx is done.
func (h *GRPCHandler) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			h.Probe(probeCtx)
			cancel()
		}
	}
}

// Shutdown marks every service not serving so clients drain.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
}

func (h *GRPCHandler) setStatus(s grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", s)
	h.health.SetServingStatus(ServiceName, s)
}

func (h *GRPCHandler) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := next(ctx, req)
	h.logger.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("latency", time.Since(start)).
		Msg("grpc call")
	return resp, err
}
