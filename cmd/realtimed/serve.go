package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc"

	"github.com/fenwickgames/realtimecore/pkg/adminapi"
	"github.com/fenwickgames/realtimecore/pkg/config"
	"github.com/fenwickgames/realtimecore/pkg/core"
	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the real-time core server",
	Long: `Start the UDP-facing tick-driven core: network receive loops,
fiber pools, ingress pipeline, tick loop, optional database gateway,
metrics/health HTTP endpoints, and the admin gRPC surface.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file")
	serveCmd.Flags().Int("port", 0, "UDP listen port (overrides config)")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health HTTP listen address")
	serveCmd.Flags().Bool("enable-pprof", false, "Enable pprof profiling endpoints on the metrics server")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := log.WithComponent("realtimed").With().Str("instance_id", cfg.InstanceID).Logger()

	c, err := core.New(core.Config{
		Addr:       fmt.Sprintf(":%d", cfg.Port),
		NCore:      cfg.NCore,
		NNet:       cfg.NNet,
		NDB:        cfg.NDB,
		Stripes:    cfg.Stripes,
		Heartbeat:  cfg.Heartbeat,
		JoinPools:  false,
		InstanceID: cfg.InstanceID,
	})
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.HasDatabase() {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer client.Disconnect(context.Background())

		if err := c.WithDatabase(ctx, client, cfg.Mongo.Database); err != nil {
			return fmt.Errorf("wire database gateway: %w", err)
		}
		metrics.RegisterComponent("database", true, "connected")
		logger.Info().Str("database", cfg.Mongo.Database).Msg("database gateway ready")
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent("network", false, "starting")
	metrics.RegisterComponent("pools", false, "starting")
	metrics.RegisterComponent("ingress", false, "starting")

	c.Start(ctx)
	metrics.RegisterComponent("network", true, "ready")
	metrics.RegisterComponent("pools", true, "ready")
	metrics.RegisterComponent("ingress", true, "ready")
	logger.Info().Int("port", cfg.Port).Msg("core started")

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	if enablePprof, _ := cmd.Flags().GetBool("enable-pprof"); enablePprof {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("metrics/health endpoints listening")

	adminLis, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		return fmt.Errorf("listen admin addr: %w", err)
	}
	grpcServer := grpc.NewServer()
	adminapi.Register(grpcServer, adminapi.NewServer(c))
	go func() {
		if err := grpcServer.Serve(adminLis); err != nil {
			logger.Warn().Err(err).Msg("admin server error")
		}
	}()
	logger.Info().Str("addr", cfg.AdminAddr).Msg("admin gRPC surface listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	grpcServer.GracefulStop()
	_ = metricsSrv.Close()
	c.Stop()
	logger.Info().Msg("shutdown complete")
	return nil
}
