package oracle

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// DefaultMetricPatterns are tried in order; the first parseable capture wins
var DefaultMetricPatterns = []string{
	`FINAL_BER:\s*([\d.eE+-]+)`,
	`(?i)BER\s*[=:]\s*([\d.eE+-]+)`,
}

// MetricParser extracts a scalar metric from free-form tool output
type MetricParser struct {
	patterns []*regexp.Regexp
}

// NewMetricParser compiles the patterns; an empty list uses DefaultMetricPatterns
func NewMetricParser(patterns []string) (*MetricParser, error) {
	if len(patterns) == 0 {
		patterns = DefaultMetricPatterns
	}
	p := &MetricParser{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, expr := range patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid metric pattern %q: %w", expr, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("metric pattern %q has no capture group", expr)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Parse returns the first finite value captured by the patterns, in pattern order
func (p *MetricParser) Parse(output []byte) (float64, bool) {
	for _, re := range p.patterns {
		for _, m := range re.FindAllSubmatch(output, -1) {
			v, err := strconv.ParseFloat(string(m[1]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			return v, true
		}
	}
	return 0, false
}
