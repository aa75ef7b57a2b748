// Package aggregate applies the post-search robustness margin and computes
// campaign statistics.
package aggregate

import (
	"errors"
	"sync"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

// DefaultMargin is the number of fractional bits added after the search
const DefaultMargin = 2

// ErrMarginApplied is returned when a Pass runs a second time
var ErrMarginApplied = errors.New("robustness margin already applied")

// ApplyMargin adds margin fractional bits to every variable's current total
// width, leaving the integer width unchanged. No oracle is consulted. The
// operation is not idempotent: every call widens again.
func ApplyMargin(vars []*models.Variable, margin int) []models.Result {
	results := make([]models.Result, len(vars))
	for i, v := range vars {
		v.Current.Total += margin
		results[i] = v.Result()
	}
	return results
}

// Pass applies the margin at most once
type Pass struct {
	margin  int
	once    sync.Once
	applied bool
}

// NewPass creates a single-shot margin pass
func NewPass(margin int) *Pass {
	return &Pass{margin: margin}
}

// Apply runs ApplyMargin the first time and fails afterwards
func (p *Pass) Apply(vars []*models.Variable) ([]models.Result, error) {
	var results []models.Result
	ran := false
	p.once.Do(func() {
		results = ApplyMargin(vars, p.margin)
		p.applied = true
		ran = true
	})
	if !ran {
		return nil, ErrMarginApplied
	}
	return results, nil
}

// Applied reports whether the pass has run
func (p *Pass) Applied() bool {
	return p.applied
}

// Summarize aggregates per-variable results
func Summarize(results []models.Result) models.Summary {
	s := models.Summary{Variables: len(results)}
	initial := 0
	reductions := make([]float64, 0, len(results))
	for _, r := range results {
		switch r.Status {
		case models.VariableOptimized:
			s.Optimized++
		case models.VariableFailed:
			s.Failed++
		}
		s.TotalBitsReduced += r.BitsReduced
		initial += r.InitialTotal
		reductions = append(reductions, float64(r.BitsReduced))
	}
	s.MeanBitsReduced = utils.Round(utils.Mean(reductions), 2)
	if initial > 0 {
		s.PercentReduced = utils.Round(float64(s.TotalBitsReduced)/float64(initial)*100, 2)
	}
	return s
}
