// Package grpcserver exposes the grpc.health.v1 service for the storage backends.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service besides the overall "" entry.
const ServiceName = "cloudbox"

// Probe reports whether a backing store is reachable.
type Probe func(ctx context.Context) error

// Server serves health checks and flips status according to probes.
type Server struct {
	gs       *grpc.Server
	hs       *health.Server
	probes   map[string]Probe
	interval time.Duration
	log      *zap.Logger
}

// New constructs a health server. Status starts NOT_SERVING until the first probe.
func New(probes map[string]Probe, interval time.Duration, log *zap.Logger) *Server {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{gs: gs, hs: hs, probes: probes, interval: interval, log: log}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.gs.Serve(lis)
}

// Run probes immediately and then every interval until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.Check(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

// Check runs every probe once and updates the served status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	for name, p := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, s.interval)
		err := p(pctx)
		cancel()
		if err != nil {
			s.log.Warn("health probe failed", zap.String("probe", name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.set(st)
	return st
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", st)
	s.hs.SetServingStatus(ServiceName, st)
}

// Stop marks the service as shutting down and stops gracefully, forcing after ctx.
func (s *Server) Stop(ctx context.Context) {
	s.hs.Shutdown()
	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.gs.Stop()
	}
}
