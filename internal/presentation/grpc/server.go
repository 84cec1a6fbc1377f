package grpcpresentation

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health-checked service alongside the overall "" entry.
const ServiceName = "minishop.checkout"

const componentGRPC = "grpc_server"

// Probe reports whether the backing store is usable.
type Probe func(ctx context.Context) error

// Server exposes gRPC health and reflection. Health follows the probe result.
type Server struct {
	srv      *grpc.Server
	health   *health.Server
	probe    Probe
	interval time.Duration
	log      observability.Logger

	mu      sync.Mutex
	serving bool
}

func NewServer(probe Probe, interval time.Duration, tel observability.Observability) *Server {
	if tel == nil {
		tel = observability.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s := &Server{
		health:   health.NewServer(),
		probe:    probe,
		interval: interval,
		log:      tel.Logger().With(observability.F("component", componentGRPC)),
	}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessLog))
	grpc_health_v1.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	return s
}

// Check runs the probe once and publishes the result.
func (s *Server) Check(ctx context.Context) bool {
	ok := true
	if s.probe != nil {
		if err := s.probe(ctx); err != nil {
			ok = false
			s.log.Warn("health_probe_failed", observability.F("error", err.Error()))
		}
	}
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if !ok {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)

	s.mu.Lock()
	changed := s.serving != ok
	s.serving = ok
	s.mu.Unlock()
	if changed {
		s.log.Info("health_status_changed", observability.F("status", st.String()))
	}
	return ok
}

// Serve blocks until ctx is done or lis fails, probing on the configured interval.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(lis) }()
	s.log.Info("grpc_server_started", observability.F("addr", lis.Addr().String()))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.Stop()
		return nil
	}
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
	s.log.Info("grpc_server_stopped")
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, s.interval)
			s.Check(pctx)
			cancel()
		}
	}
}

func (s *Server) accessLog(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	logger := s.log.With(observability.F("method", info.FullMethod))
	resp, err := handler(logctx.With(ctx, logger), req)
	logger.Debug("grpc_access",
		observability.F("code", status.Code(err).String()),
		observability.F("latency_ms", time.Since(start).Milliseconds()),
	)
	return resp, err
}
