package api

import (
	"Go2DAQSpectra/internal/session"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceSession is SERVING while the controller can accept a new session.
const ServiceSession = "daq.session"

// Health serves the standard gRPC health protocol.
type Health struct {
	srv    *grpc.Server
	hs     *health.Server
	logger *zap.Logger
}

// NewHealth creates a health server; the session service starts SERVING.
func NewHealth(logger *zap.Logger) *Health {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceSession, healthpb.HealthCheckResponse_SERVING)
	return &Health{srv: srv, hs: hs, logger: logger}
}

// SetState tracks controller transitions. It can be passed as session.Options.OnStateChange.
func (h *Health) SetState(s session.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.Active() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus(ServiceSession, status)
}

// Server exposes the underlying health server.
func (h *Health) Server() healthpb.HealthServer {
	return h.hs
}

// Serve listens on addr in the background.
func (h *Health) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	go func() {
		h.logger.Info("gRPC health server starting", zap.String("addr", addr))
		if err := h.srv.Serve(lis); err != nil {
			h.logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop marks every service NOT_SERVING and stops the server.
func (h *Health) Stop() {
	h.hs.Shutdown()
	h.srv.GracefulStop()
}
