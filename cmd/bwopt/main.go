package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/campaign"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/journal"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/oracle"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/status"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/config"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	exitOK        = 0
	exitError     = 1
	exitCancelled = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var logLevel string
	var httpAddr string
	var printConfig bool

	flag.StringVar(&configPath, "config", "config/bwopt.yaml", "campaign configuration file")
	flag.StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	flag.StringVar(&httpAddr, "http-addr", "", "override status server address (empty disables it unless configured)")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration and exit")

	var header, outputDir, scenario string
	var threshold, noise float64
	var size, complexity int
	flag.StringVar(&header, "header", "", "override source.header")
	flag.StringVar(&outputDir, "output-dir", "", "override output.dir")
	flag.Float64Var(&threshold, "threshold", 0, "override search.threshold")
	flag.StringVar(&scenario, "scenario", "", "override scenario.name")
	flag.IntVar(&size, "size", 0, "override scenario.size")
	flag.IntVar(&complexity, "complexity", 0, "override scenario.complexity")
	flag.Float64Var(&noise, "noise", 0, "override scenario.noise_level")
	flag.Parse()

	var overrides config.Overrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "header":
			overrides.Header = &header
		case "output-dir":
			overrides.OutputDir = &outputDir
		case "threshold":
			overrides.Threshold = &threshold
		case "scenario":
			overrides.Scenario = &scenario
		case "size":
			overrides.Size = &size
		case "complexity":
			overrides.Complexity = &complexity
		case "noise":
			overrides.NoiseLevel = &noise
		}
	})

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		return exitError
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if err := config.ApplyOverrides(cfg, overrides); err != nil {
		logger.Error("invalid command-line override", "error", err)
		return exitError
	}
	logger.SetDefault(logger.NewWithFormat(cfg.LogFormat, cfg.LogLevel, os.Stdout))

	if printConfig {
		out, err := config.MarshalConfigYAML(cfg)
		if err != nil {
			logger.Error("failed to render config", "error", err)
			return exitError
		}
		fmt.Print(out)
		return exitOK
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	base, cleaner, closeOracle, err := newOracle(cfg)
	if err != nil {
		logger.Error("failed to create oracle", "kind", cfg.Oracle.Kind, "error", err)
		return exitError
	}
	defer closeOracle()

	store, err := journal.New(cfg.Journal.Backend, cfg.Journal.Path)
	if err != nil {
		logger.Error("failed to create journal", "error", err)
		return exitError
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close journal", "error", err)
		}
	}()

	orch := campaign.NewOrchestrator(cfg, oracle.NewInstrumented(base, metrics), store).
		WithMetrics(metrics)
	if cleaner != nil {
		orch.WithLogCleaner(cleaner)
	}

	if cfg.Server.HTTPAddr != "" {
		ln, err := net.Listen("tcp", cfg.Server.HTTPAddr)
		if err != nil {
			logger.Error("failed to listen for HTTP", "addr", cfg.Server.HTTPAddr, "error", err)
			return exitError
		}
		srv := status.NewHTTPServer(orch.Tracker(), metrics)
		go func() {
			if err := srv.Serve(ln); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP shutdown error", "error", err)
			}
		}()
	}

	out, err := orch.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("campaign cancelled", "error", err)
			return exitCancelled
		}
		logger.Error("campaign failed", "error", err)
		return exitError
	}
	if out.Status == models.CampaignCancelled {
		return exitCancelled
	}
	return exitOK
}

// newOracle returns the configured oracle, the log cleaner of a local
// toolchain, and a close function.
func newOracle(cfg *config.Config) (oracle.Oracle, campaign.LogCleaner, func(), error) {
	switch cfg.Oracle.Kind {
	case "remote":
		r, err := oracle.RemoteFromConfig(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using remote oracle", "addr", cfg.Remote.Addr)
		return r, nil, func() {
			if err := r.Close(); err != nil {
				logger.Warn("failed to close oracle connection", "error", err)
			}
		}, nil
	default:
		t, err := oracle.ToolchainFromConfig(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using local toolchain oracle", "workdir", cfg.Oracle.Workdir, "timeout", cfg.Oracle.Timeout)
		return t, t, func() {}, nil
	}
}
