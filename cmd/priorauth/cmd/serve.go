package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solatis/priorauth/internal/core/api"
	"github.com/solatis/priorauth/internal/core/auth"
	"github.com/solatis/priorauth/internal/core/config"
	"github.com/solatis/priorauth/internal/core/server"
	"github.com/solatis/priorauth/internal/index"
	"github.com/solatis/priorauth/internal/rules"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC decision service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	reg, queries, closeFn, err := openRegistry()
	if err != nil {
		return err
	}
	defer closeFn()

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	var authenticator *auth.Authenticator
	if len(secrets) > 0 {
		if queries == nil {
			return fmt.Errorf("API key authentication requires the sql registry backend (unset %s to serve without it)", config.EnvHMACSecret)
		}
		authenticator = auth.NewAuthenticator(secrets, queries)
	}

	engine := rules.NewEngine(rules.WithLogger(logger), rules.WithMetrics(collector))
	service, err := api.NewDecisionService(engine, reg, &cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Index.RefreshSchedule != "" {
		idx, closeIndex, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer closeIndex()

		scheduler := index.NewScheduler(reg, idx, cfg.Index.RefreshSchedule, logger)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start index refresh: %w", err)
		}
		defer scheduler.Stop()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("starting priorauth decision service",
		zap.String("version", Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("registry_backend", cfg.Registry.Backend),
		zap.Bool("auth", authenticator != nil),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		return grpcServer.Shutdown(shutdownCtx)
	}
}
