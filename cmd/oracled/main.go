package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/oracle"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/config"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

func main() {
	var configPath string
	var grpcAddr string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "config/bwopt.yaml", "configuration file (oracle section is used)")
	flag.StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (default server.grpc_addr or :50061)")
	flag.StringVar(&httpAddr, "http-addr", "", "metrics listen address (empty disables)")
	flag.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.SetDefault(logger.NewWithFormat(cfg.LogFormat, cfg.LogLevel, os.Stdout))

	if grpcAddr == "" {
		grpcAddr = cfg.Server.GRPCAddr
	}
	if grpcAddr == "" {
		grpcAddr = ":50061"
	}

	toolchain, err := oracle.ToolchainFromConfig(cfg)
	if err != nil {
		logger.Error("failed to create toolchain oracle", "error", err)
		os.Exit(1)
	}
	metrics := prometheus.NewRegistry()
	instrumented := oracle.NewInstrumented(toolchain, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// TODO: add TLS credentials before exposing the oracle beyond a trusted network.
	grpcServer := grpc.NewServer()
	oracle.NewServer(instrumented).Register(grpcServer)

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logger.Error("failed to listen for gRPC", "addr", grpcAddr, "error", err)
		stop()
		os.Exit(1)
	}

	go func() {
		logger.Info("gRPC oracle listening", "addr", grpcAddr, "workdir", cfg.Oracle.Workdir)
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	var httpSrv *http.Server
	if httpAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))
		httpSrv = &http.Server{
			Addr:              httpAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", "addr", httpAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	// in-flight evaluations restore the workspace before returning
	grpcServer.GracefulStop()
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}
}
