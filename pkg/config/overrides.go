package config

import (
	"fmt"
	"path/filepath"
)

// Overrides holds command-line values that replace loaded configuration
// fields. Nil fields leave the configuration untouched.
type Overrides struct {
	Header     *string
	OutputDir  *string
	Threshold  *float64
	Scenario   *string
	Size       *int
	Complexity *int
	NoiseLevel *float64
}

// ApplyOverrides sets every non-nil override on cfg and validates the result
func ApplyOverrides(cfg *Config, o Overrides) error {
	if o.Header != nil {
		cfg.Source.Header = *o.Header
	}
	if o.OutputDir != nil {
		// a journal path derived from the old output dir follows it
		if cfg.Journal.Path == filepath.Join(cfg.Output.Dir, "journal.db") {
			cfg.Journal.Path = filepath.Join(*o.OutputDir, "journal.db")
		}
		cfg.Output.Dir = *o.OutputDir
	}
	if o.Threshold != nil {
		cfg.Search.Threshold = *o.Threshold
	}
	if o.Scenario != nil {
		cfg.Scenario.Name = *o.Scenario
	}
	if o.Size != nil {
		cfg.Scenario.Size = *o.Size
	}
	if o.Complexity != nil {
		cfg.Scenario.Complexity = *o.Complexity
	}
	if o.NoiseLevel != nil {
		cfg.Scenario.NoiseLevel = *o.NoiseLevel
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid config after overrides: %w", err)
	}
	return nil
}
