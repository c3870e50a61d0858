package server

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves the standard gRPC health protocol for orchestrators
// probing the daemon.
type HealthServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewHealthServer(logger *slog.Logger) *HealthServer {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	return &HealthServer{grpc: grpcServer, health: healthServer, logger: logger}
}

// SetServing flips the overall serving status.
func (h *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Serve blocks until the listener closes.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("grpc health server listening", "addr", lis.Addr().String())
	return h.grpc.Serve(lis)
}

func (h *HealthServer) Stop() {
	h.SetServing(false)
	h.grpc.GracefulStop()
}
