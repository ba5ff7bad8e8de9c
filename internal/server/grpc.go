package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Deps holds optional service dependencies for gRPC registration.
type Deps struct {
	// Health is the standard health service. If nil, a server reporting SERVING is registered.
	Health *health.Server
}

// New returns a gRPC server with OpenTelemetry stats instrumentation and the given services registered.
func New(deps Deps, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, deps)
	return s
}

// RegisterServices registers the gRPC services with the given server.
//
//   - grpc.health.v1.Health → internal/health (status kept current by health.Monitor)
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	hs := deps.Health
	if hs == nil {
		hs = health.NewServer()
	}
	healthpb.RegisterHealthServer(s, hs)
}
