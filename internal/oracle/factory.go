package oracle

import (
	"fmt"
	"os"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/registry"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/config"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

// ToolchainFromConfig builds the local build-and-simulate oracle
func ToolchainFromConfig(cfg *config.Config) (*ToolchainOracle, error) {
	o := cfg.Oracle
	timeout, err := o.GetTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid oracle timeout: %w", err)
	}

	var script string
	if o.ScriptTemplate != "" {
		data, err := os.ReadFile(o.ScriptTemplate)
		if err != nil {
			return nil, fmt.Errorf("failed to read script template: %w", err)
		}
		script = string(data)
	}

	parser, err := NewMetricParser(o.MetricPatterns)
	if err != nil {
		return nil, err
	}

	constants := make([]Constant, len(o.Constants))
	for i, c := range o.Constants {
		constants[i] = Constant{Name: c.Name, Source: c.Source}
	}

	return NewToolchainOracle(ToolchainConfig{
		Workdir:         o.Workdir,
		TypesHeader:     o.TypesHeader,
		DesignHeader:    o.DesignHeader,
		Constants:       constants,
		Command:         o.Command,
		ScriptTemplate:  script,
		LogDir:          o.LogDir,
		KeepLogs:        o.KeepLogs,
		Timeout:         timeout,
		DiagnosticLines: o.DiagnosticLines,
	}, registry.NewRenderer(cfg.Source.Includes), parser)
}

// RemoteFromConfig dials the oracle server named in the remote section
func RemoteFromConfig(cfg *config.Config) (*RemoteOracle, error) {
	r := cfg.Remote
	if r == nil || r.Addr == "" {
		return nil, fmt.Errorf("remote.addr is required")
	}
	base, err := r.GetBaseDelay()
	if err != nil {
		return nil, fmt.Errorf("invalid remote base_delay: %w", err)
	}
	opts := RemoteOptions{
		MaxRetries:      r.MaxRetries,
		Backoff:         utils.BackoffFromConfig(r.Backoff, base, 0),
		DiagnosticLines: cfg.Oracle.DiagnosticLines,
	}
	if r.BreakerThreshold > 0 {
		cooldown, err := r.GetBreakerCooldown()
		if err != nil {
			return nil, fmt.Errorf("invalid remote breaker_cooldown: %w", err)
		}
		opts.Breaker = NewBreaker(r.BreakerThreshold, 1, cooldown)
	}
	return DialRemote(r.Addr, opts)
}
