package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration populated with the stock search policy
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Source: Source{
			Header:         "MyComplex_1.h",
			ReservedPrefix: "_subfunc_",
			Includes: []string{
				`"ap_fixed.h"`,
				`"ap_int.h"`,
				`"hls_math.h"`,
				`"hls_stream.h"`,
			},
		},
		Scenario: defaultScenario(),
		Search: Search{
			Threshold:    0.01,
			Acceptance:   "absolute",
			CoarseStep:   4,
			FineStep:     1,
			IntegerStep:  2,
			FloorInteger: 4,
			Margin:       2,
			Order:        "declaration",
			ContextMode:  "cumulative",
			IntegerMode:  "keep_fraction",
		},
		Oracle: Oracle{
			Kind:         "toolchain",
			Workdir:      ".",
			TypesHeader:  "MyComplex_1.h",
			DesignHeader: "MHGD_accel_hw.h",
			Constants: []Constant{
				{Name: "Ntr_1", Source: "size"},
				{Name: "mu_1", Source: "log2_complexity"},
				{Name: "mu_double", Source: "complexity"},
			},
			Command:         []string{"vitis_hls", "-f", "{{.Script}}"},
			LogDir:          "logfiles",
			Timeout:         "10m",
			DiagnosticLines: 5,
		},
		Output: Output{
			Dir:          "bitwidth_result",
			HeaderPrefix: "MyComplex_optimized",
		},
		Journal: Journal{
			Backend: "memory",
		},
	}
}

func defaultScenario() models.Scenario {
	return models.Scenario{Size: 8, Complexity: 16, NoiseLevel: 25}
}

// applyDefaults fills fields that depend on other fields
func applyDefaults(cfg *Config) {
	if cfg.Remote != nil {
		// a remote block with an address selects the remote oracle
		if cfg.Remote.Addr != "" {
			cfg.Oracle.Kind = "remote"
		}
		if cfg.Remote.MaxRetries == 0 {
			cfg.Remote.MaxRetries = 3
		}
		if cfg.Remote.BaseDelay == "" {
			cfg.Remote.BaseDelay = "2s"
		}
		if cfg.Remote.Backoff == "" {
			cfg.Remote.Backoff = "jitter"
		}
		if cfg.Remote.BreakerThreshold == 0 {
			cfg.Remote.BreakerThreshold = 3
		}
		if cfg.Remote.BreakerCooldown == "" {
			cfg.Remote.BreakerCooldown = "1m"
		}
	}
	if cfg.Journal.Backend == "sqlite" && cfg.Journal.Path == "" {
		cfg.Journal.Path = filepath.Join(cfg.Output.Dir, "journal.db")
	}
}

// Validate performs validation on the configuration
func Validate(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}

	if cfg.Source.Header == "" {
		return fmt.Errorf("source header cannot be empty")
	}

	if err := validateScenario(cfg); err != nil {
		return fmt.Errorf("scenario validation failed: %w", err)
	}
	if err := validateSearch(&cfg.Search); err != nil {
		return fmt.Errorf("search validation failed: %w", err)
	}
	if err := validateOracle(cfg); err != nil {
		return fmt.Errorf("oracle validation failed: %w", err)
	}

	if cfg.Output.Dir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}

	switch cfg.Journal.Backend {
	case "memory":
	case "sqlite":
		if cfg.Journal.Path == "" {
			return fmt.Errorf("journal path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid journal backend: %s (must be memory or sqlite)", cfg.Journal.Backend)
	}

	return nil
}

func validateScenario(cfg *Config) error {
	s := cfg.Scenario
	if s.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", s.Size)
	}
	if s.Complexity <= 0 {
		return fmt.Errorf("complexity must be positive, got %d", s.Complexity)
	}
	return nil
}

// validateSearch validates the search policy
func validateSearch(s *Search) error {
	if s.CoarseStep <= 0 {
		return fmt.Errorf("coarse_step must be positive, got %d", s.CoarseStep)
	}
	if s.FineStep <= 0 {
		return fmt.Errorf("fine_step must be positive, got %d", s.FineStep)
	}
	if s.FineStep > s.CoarseStep {
		return fmt.Errorf("fine_step (%d) cannot exceed coarse_step (%d)", s.FineStep, s.CoarseStep)
	}
	if s.IntegerStep <= 0 {
		return fmt.Errorf("integer_step must be positive, got %d", s.IntegerStep)
	}
	if s.FloorInteger < 1 {
		return fmt.Errorf("floor_integer must be at least 1, got %d", s.FloorInteger)
	}
	if s.Margin < 0 {
		return fmt.Errorf("margin cannot be negative, got %d", s.Margin)
	}

	validAcceptance := map[string]bool{
		"absolute":       true,
		"baseline_delta": true,
	}
	if !validAcceptance[s.Acceptance] {
		return fmt.Errorf("invalid acceptance: %s (must be absolute or baseline_delta)", s.Acceptance)
	}

	validOrders := map[string]bool{
		"declaration":         true,
		"reverse_declaration": true,
		"width_ascending":     true,
		"width_descending":    true,
	}
	if !validOrders[s.Order] {
		return fmt.Errorf("invalid order: %s", s.Order)
	}

	if s.ContextMode != "cumulative" && s.ContextMode != "isolated" {
		return fmt.Errorf("invalid context_mode: %s (must be cumulative or isolated)", s.ContextMode)
	}

	if s.IntegerMode != "keep_fraction" && s.IntegerMode != "keep_total" {
		return fmt.Errorf("invalid integer_mode: %s (must be keep_fraction or keep_total)", s.IntegerMode)
	}

	if s.InitialWidth != nil {
		w := s.InitialWidth.Width()
		if !w.Valid() {
			return fmt.Errorf("initial_width %s violates the structural floor", w)
		}
		if w.Integer < s.FloorInteger {
			return fmt.Errorf("initial_width integer %d is below floor_integer %d", w.Integer, s.FloorInteger)
		}
	}

	return nil
}

// validateOracle validates the oracle and remote sections
func validateOracle(cfg *Config) error {
	o := &cfg.Oracle
	if o.DiagnosticLines <= 0 {
		return fmt.Errorf("diagnostic_lines must be positive, got %d", o.DiagnosticLines)
	}
	for _, p := range o.MetricPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid metric pattern %q: %w", p, err)
		}
		if re.NumSubexp() < 1 {
			return fmt.Errorf("metric pattern %q must capture the value in a group", p)
		}
	}

	validSources := map[string]bool{
		"size":            true,
		"complexity":      true,
		"log2_complexity": true,
	}
	for _, c := range o.Constants {
		if c.Name == "" {
			return fmt.Errorf("constant name cannot be empty")
		}
		if !validSources[c.Source] {
			return fmt.Errorf("constant %s: invalid source %s (must be size, complexity, or log2_complexity)", c.Name, c.Source)
		}
	}

	switch o.Kind {
	case "toolchain":
		if o.TypesHeader == "" {
			return fmt.Errorf("types_header cannot be empty")
		}
		if len(o.Command) == 0 {
			return fmt.Errorf("command cannot be empty")
		}
		timeout, err := o.GetTimeout()
		if err != nil {
			return fmt.Errorf("invalid timeout %s: %w", o.Timeout, err)
		}
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
		}
	case "remote":
		if cfg.Remote == nil || cfg.Remote.Addr == "" {
			return fmt.Errorf("remote.addr is required for the remote oracle")
		}
		if cfg.Remote.MaxRetries < 0 {
			return fmt.Errorf("remote max_retries cannot be negative, got %d", cfg.Remote.MaxRetries)
		}
		if _, err := cfg.Remote.GetBaseDelay(); err != nil {
			return fmt.Errorf("invalid remote base_delay %s: %w", cfg.Remote.BaseDelay, err)
		}
		if cfg.Remote.BreakerThreshold < 0 {
			return fmt.Errorf("remote breaker_threshold cannot be negative, got %d", cfg.Remote.BreakerThreshold)
		}
		if _, err := cfg.Remote.GetBreakerCooldown(); err != nil {
			return fmt.Errorf("invalid remote breaker_cooldown %s: %w", cfg.Remote.BreakerCooldown, err)
		}
	default:
		return fmt.Errorf("invalid oracle kind: %s (must be toolchain or remote)", o.Kind)
	}

	return nil
}
