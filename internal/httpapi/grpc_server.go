package httpapi

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"pitaka.app/internal/obs"
)

// GRPCHealth serves grpc.health.v1 for load balancers and orchestrators, backed by
// the same probe as /readyz. The empty service name and serviceName are known.
type GRPCHealth struct {
	healthpb.UnimplementedHealthServer

	probe ReadyProbe
}

func NewGRPCHealth(probe ReadyProbe) *GRPCHealth {
	return &GRPCHealth{probe: probe}
}

func (h *GRPCHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != serviceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := h.probe.Check(ctx); err != nil {
		obs.SetReady(false)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	obs.SetReady(true)
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
