// Package health keeps the standard gRPC health service in sync with database and policy readiness.
package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "authentico"

// Pinger is used for readiness (e.g. *sql.DB). Implementations should respect context cancellation.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker reports whether the policy engine can evaluate (e.g. *authz.OPABackend).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Monitor updates a gRPC health server from readiness probes.
type Monitor struct {
	srv    *health.Server
	pinger Pinger
	policy PolicyChecker
	log    logrus.FieldLogger
}

// NewMonitor returns a Monitor over srv. Nil pinger or policy skips that probe.
func NewMonitor(srv *health.Server, pinger Pinger, policy PolicyChecker, log logrus.FieldLogger) *Monitor {
	return &Monitor{srv: srv, pinger: pinger, policy: policy, log: log}
}

// Server returns the underlying gRPC health server.
func (m *Monitor) Server() *health.Server {
	return m.srv
}

// Check runs the probes once and publishes the result. Returns the status it set.
func (m *Monitor) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if m.pinger != nil {
		if err := m.pinger.PingContext(ctx); err != nil {
			m.log.WithError(err).Warn("health: database ping failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if st == healthpb.HealthCheckResponse_SERVING && m.policy != nil {
		if err := m.policy.HealthCheck(ctx); err != nil {
			m.log.WithError(err).Warn("health: policy check failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	m.srv.SetServingStatus("", st)
	m.srv.SetServingStatus(ServiceName, st)
	return st
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
