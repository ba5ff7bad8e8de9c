package cmd

import (
	"context"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	grpchealth "google.golang.org/grpc/health"

	"authentico/internal/app"
	"authentico/internal/health"
	"authentico/internal/server"
)

var healthInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gRPC health service",
	Long:  `Starts a gRPC server exposing grpc.health.v1. Status follows database reachability and OPA policy health.`,
	RunE: func(cobraCmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cobraCmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())

		var policy health.PolicyChecker
		if a.OPA != nil {
			policy = a.OPA
		}
		monitor := health.NewMonitor(grpchealth.NewServer(), a.DB, policy, log)
		go monitor.Run(ctx, healthInterval)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		defer lis.Close()

		s := server.New(server.Deps{Health: monitor.Server()})
		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
			errCh <- s.Serve(lis)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down gRPC server...")
		monitor.Server().Shutdown()
		s.GracefulStop()
		log.Info("gRPC server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&healthInterval, "health-interval", 15*time.Second, "How often readiness probes run")
}
