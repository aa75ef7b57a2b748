// Package search implements the staged, oracle-gated bit-width search.
package search

import (
	"fmt"
)

// Acceptance selects how a metric is compared against the threshold
type Acceptance string

const (
	// AcceptAbsolute accepts when metric <= threshold
	AcceptAbsolute Acceptance = "absolute"
	// AcceptBaselineDelta accepts when metric - baseline <= threshold
	AcceptBaselineDelta Acceptance = "baseline_delta"
)

// Order selects the variable processing order
type Order string

const (
	OrderDeclaration        Order = "declaration"
	OrderReverseDeclaration Order = "reverse_declaration"
	OrderWidthAscending     Order = "width_ascending"
	OrderWidthDescending    Order = "width_descending"
)

// ContextMode selects the widths other variables hold while one is searched
type ContextMode string

const (
	// ContextCumulative holds other variables at their latest committed widths
	ContextCumulative ContextMode = "cumulative"
	// ContextIsolated holds other variables at their initial widths
	ContextIsolated ContextMode = "isolated"
)

// IntegerMode selects what the integer phase keeps fixed
type IntegerMode string

const (
	// IntegerKeepFraction keeps the fractional bits: total = integer + fraction
	IntegerKeepFraction IntegerMode = "keep_fraction"
	// IntegerKeepTotal keeps the total width and hands freed integer bits to the fraction
	IntegerKeepTotal IntegerMode = "keep_total"
)

// Config carries every policy knob of the engine
type Config struct {
	CoarseStep   int
	FineStep     int
	IntegerStep  int
	FloorInteger int
	Threshold    float64
	Acceptance   Acceptance
	Order        Order
	Context      ContextMode
	IntegerMode  IntegerMode
}

// DefaultConfig returns the stock policy
func DefaultConfig() Config {
	return Config{
		CoarseStep:   4,
		FineStep:     1,
		IntegerStep:  2,
		FloorInteger: 4,
		Threshold:    0.01,
		Acceptance:   AcceptAbsolute,
		Order:        OrderDeclaration,
		Context:      ContextCumulative,
		IntegerMode:  IntegerKeepFraction,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.CoarseStep <= 0 || c.FineStep <= 0 || c.IntegerStep <= 0 {
		return fmt.Errorf("steps must be positive (coarse=%d fine=%d integer=%d)", c.CoarseStep, c.FineStep, c.IntegerStep)
	}
	if c.FineStep > c.CoarseStep {
		return fmt.Errorf("fine step %d exceeds coarse step %d", c.FineStep, c.CoarseStep)
	}
	if c.FloorInteger < 1 {
		return fmt.Errorf("floor integer must be at least 1, got %d", c.FloorInteger)
	}
	switch c.Acceptance {
	case AcceptAbsolute, AcceptBaselineDelta:
	default:
		return fmt.Errorf("unknown acceptance %q", c.Acceptance)
	}
	switch c.Order {
	case OrderDeclaration, OrderReverseDeclaration, OrderWidthAscending, OrderWidthDescending:
	default:
		return fmt.Errorf("unknown order %q", c.Order)
	}
	switch c.Context {
	case ContextCumulative, ContextIsolated:
	default:
		return fmt.Errorf("unknown context mode %q", c.Context)
	}
	switch c.IntegerMode {
	case IntegerKeepFraction, IntegerKeepTotal:
	default:
		return fmt.Errorf("unknown integer mode %q", c.IntegerMode)
	}
	return nil
}

// Accepts applies the acceptance rule
func (c Config) Accepts(metric, baseline float64) bool {
	if c.Acceptance == AcceptBaselineDelta {
		return metric-baseline <= c.Threshold
	}
	return metric <= c.Threshold
}
