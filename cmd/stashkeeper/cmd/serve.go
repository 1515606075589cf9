package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/solatis/stashkeeper/internal/containers"
	"github.com/solatis/stashkeeper/internal/core/api"
	"github.com/solatis/stashkeeper/internal/core/auth"
	"github.com/solatis/stashkeeper/internal/core/config"
	"github.com/solatis/stashkeeper/internal/core/server"
	"github.com/solatis/stashkeeper/internal/observe"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC host bridge",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "127.0.0.1", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Bridge.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Bridge.Port, _ = cmd.Flags().GetInt("port")
	}

	token, err := config.BridgeToken()
	if err != nil {
		return err
	}
	authenticator, err := auth.NewAuthenticator(token)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	if !authenticator.Enabled() {
		logger.Warn("bridge authentication disabled", "env", config.BridgeTokenEnv)
	}

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer shutdownMetrics(context.Background())
	metrics := observe.DefaultMetrics()

	sources, closeDB, err := ruleSources(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	dist, err := containers.ParseDistribution(cfg.Engine.KeywordDistribution)
	if err != nil {
		return err
	}
	manager := containers.NewManager(nil, containers.Options{
		Distribution: dist,
		Seed:         cfg.Engine.Seed,
		Metrics:      metrics,
		Logger:       logger,
	})

	service, err := api.NewService(cfg, manager, sources, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.Bridge, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting StashKeeper host bridge",
		"version", Version,
		"addr", grpcServer.Addr(),
		"auth", authenticator.Enabled(),
		"keyword_distribution", dist.String(),
	)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return grpcServer.Start(gctx)
	})

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = newMetricsServer(cfg.Metrics.Addr)
		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.Metrics.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully")
		if metricsServer != nil {
			_ = metricsServer.Shutdown(context.Background())
		}
		return grpcServer.Shutdown(context.Background())
	})

	return g.Wait()
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
