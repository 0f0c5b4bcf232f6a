package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// SessionService is the health service name reported for the session core.
const SessionService = "k6mud.Session"

// Check probes one dependency; a non-nil error marks the server NOT_SERVING.
type Check func(ctx context.Context) error

// HealthServer exposes grpc.health.v1.Health and periodically probes the
// registered dependency checks.
type HealthServer struct {
	addr     string
	interval time.Duration
	logger   *zap.Logger

	grpc   *grpc.Server
	health *health.Server

	mu     sync.Mutex
	checks map[string]Check

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHealthServer creates a health endpoint listening on addr.
//
// Precondition: interval must be positive; logger must be non-nil.
func NewHealthServer(addr string, interval time.Duration, logger *zap.Logger) *HealthServer {
	h := &HealthServer{
		addr:     addr,
		interval: interval,
		logger:   logger,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
		checks:   make(map[string]Check),
		stop:     make(chan struct{}),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.health.SetServingStatus(SessionService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// AddCheck registers a named dependency check.
func (h *HealthServer) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Probe runs every check once and publishes the aggregate status.
//
// Postcondition: Returns the names of failing checks, sorted.
func (h *HealthServer) Probe(ctx context.Context) []string {
	h.mu.Lock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.Unlock()
	sort.Strings(names)

	var failing []string
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, h.interval)
		err := checks[name](cctx)
		cancel()
		if err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			failing = append(failing, name)
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if len(failing) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(SessionService, status)
	return failing
}

// Serve probes once, starts periodic probing and serves gRPC on lis until Stop.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.Probe(context.Background())
	go h.poll()
	return h.grpc.Serve(lis)
}

// Start listens on the configured address and serves.
func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.logger.Info("health endpoint listening", zap.String("addr", lis.Addr().String()))
	return h.Serve(lis)
}

// Drain reports NOT_SERVING for every service without stopping the endpoint,
// so load balancers stop routing new players during shutdown.
func (h *HealthServer) Drain() {
	h.health.Shutdown()
}

// Stop halts probing and gracefully stops the gRPC server.
func (h *HealthServer) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	h.health.Shutdown()
	h.grpc.GracefulStop()
}

func (h *HealthServer) poll() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.Probe(context.Background())
		}
	}
}
