package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "invest.InvestService"

// HealthServer reports SERVING while the database answers pings.
type HealthServer struct {
	*health.Server
	DB       *gorm.DB
	Interval time.Duration
}

func NewHealthServer(db *gorm.DB) *HealthServer {
	return &HealthServer{Server: health.NewServer(), DB: db, Interval: 15 * time.Second}
}

// Probe pings the database once and publishes the result.
func (h *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.ping(ctx); err != nil {
		logrus.WithError(err).Warn("health probe failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus("", status)
	h.SetServingStatus(ServiceName, status)
	return status
}

func (h *HealthServer) ping(ctx context.Context) error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Watch probes on every interval until ctx is done.
func (h *HealthServer) Watch(ctx context.Context) {
	h.Probe(ctx)
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}

// StartGRPCServer serves the health service on port until ctx is cancelled.
func StartGRPCServer(ctx context.Context, port string, h *HealthServer) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h.Server)
	reflection.Register(s)

	go h.Watch(ctx)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	logrus.Infof("gRPC server listening on %v", lis.Addr())
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
