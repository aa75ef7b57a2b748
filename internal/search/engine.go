package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/oracle"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/registry"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

// Engine runs the per-variable search against a shared candidate snapshot.
// Variables are processed strictly one at a time; an Engine is single use.
type Engine struct {
	cfg      Config
	reg      *registry.Registry
	oracle   oracle.Oracle
	scenario models.Scenario
	baseline float64
	observer Observer
	progress func(Progress)
	label    func(parts ...string) string

	errorLog []models.ErrorEntry
	calls    int
}

// Result summarizes a finished (or interrupted) search
type Result struct {
	Order       []string
	Finished    int
	OracleCalls int
	ErrorLog    []models.ErrorEntry
	Elapsed     time.Duration
}

// step is the outcome of one proposal
type step int

const (
	stepAccepted step = iota
	stepRejected
	stepFailed
)

// NewEngine creates an engine; the baseline must already be measured
func NewEngine(cfg Config, reg *registry.Registry, o oracle.Oracle, scenario models.Scenario, baseline float64) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}
	if reg == nil || reg.Len() == 0 {
		return nil, fmt.Errorf("registry has no variables")
	}
	if o == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	return &Engine{
		cfg:      cfg,
		reg:      reg,
		oracle:   o,
		scenario: scenario,
		baseline: baseline,
		observer: NopObserver{},
		label:    utils.CallLabel,
	}, nil
}

// WithObserver sets the event observer
func (e *Engine) WithObserver(obs Observer) *Engine {
	if obs == nil {
		obs = NopObserver{}
	}
	e.observer = obs
	return e
}

// WithProgressReporter sets a callback invoked after every variable
func (e *Engine) WithProgressReporter(fn func(Progress)) *Engine {
	e.progress = fn
	return e
}

// ErrorLog returns the errors recorded so far
func (e *Engine) ErrorLog() []models.ErrorEntry {
	out := make([]models.ErrorEntry, len(e.errorLog))
	copy(out, e.errorLog)
	return out
}

// Run searches every variable in processing order. It returns a non-nil
// error only when ctx ends; the result then covers the variables handled so far.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	ordered := OrderVariables(e.reg.Variables(), e.cfg.Order)
	res := &Result{Order: make([]string, len(ordered))}
	for i, v := range ordered {
		res.Order[i] = v.Name
	}

	logger.Info("search started",
		"variables", len(ordered),
		"order", e.cfg.Order,
		"context_mode", e.cfg.Context,
		"acceptance", e.cfg.Acceptance,
		"threshold", e.cfg.Threshold,
		"baseline", e.baseline)

	var runErr error
	for i, v := range ordered {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		e.observer.VariableStarted(v, i, len(ordered))
		logger.Info("optimizing variable", "variable", v.Name, "index", i+1, "total", len(ordered), "width", v.Current.String())

		err := e.searchVariable(ctx, v)
		e.finishVariable(v)
		if err != nil {
			runErr = err
			break
		}
		res.Finished++

		if e.progress != nil {
			elapsed := time.Since(start)
			e.progress(Progress{
				Variable:  v.Name,
				Done:      i + 1,
				Total:     len(ordered),
				Elapsed:   elapsed,
				Remaining: utils.EstimateRemaining(elapsed, i+1, len(ordered)),
			})
		}
	}

	res.OracleCalls = e.calls
	res.ErrorLog = e.ErrorLog()
	res.Elapsed = time.Since(start)
	if runErr != nil {
		logger.Warn("search interrupted", "finished", res.Finished, "error", runErr)
		return res, runErr
	}
	logger.Info("search finished", "oracle_calls", res.OracleCalls, "errors", len(res.ErrorLog), "elapsed", utils.FormatDuration(res.Elapsed))
	return res, nil
}

func (e *Engine) searchVariable(ctx context.Context, v *models.Variable) error {
	v.FloorInteger = e.integerFloor(v)
	if err := e.reduceFraction(ctx, v); err != nil {
		return err
	}
	return e.reduceInteger(ctx, v)
}

// reduceFraction is Phase A: coarse steps down to the structural floor, then
// fine steps from the last accepted width if coarse was stopped early.
func (e *Engine) reduceFraction(ctx context.Context, v *models.Variable) error {
	floor := v.Current.Floor()
	coarseAccepted := false
	stopped := false
	var stoppedAt int

	for v.Current.Total > floor {
		next := models.Width{Total: max(v.Current.Total-e.cfg.CoarseStep, floor), Integer: v.Current.Integer}
		s, err := e.try(ctx, v, models.PhaseFractional, models.StageCoarse, next)
		if err != nil {
			return err
		}
		if s != stepAccepted {
			stopped = true
			stoppedAt = next.Total
			break
		}
		coarseAccepted = true
	}

	if !coarseAccepted || !stopped {
		return nil
	}

	// fine steps stay above the coarse candidate that already failed
	for v.Current.Total > floor {
		next := models.Width{Total: max(v.Current.Total-e.cfg.FineStep, floor), Integer: v.Current.Integer}
		if next.Total <= stoppedAt {
			break
		}
		s, err := e.try(ctx, v, models.PhaseFractional, models.StageFine, next)
		if err != nil {
			return err
		}
		if s != stepAccepted {
			break
		}
	}
	return nil
}

// reduceInteger is Phase B: integer steps down to the integer floor
func (e *Engine) reduceInteger(ctx context.Context, v *models.Variable) error {
	fraction := v.Current.Fraction()
	for v.Current.Integer > v.FloorInteger {
		integer := max(v.Current.Integer-e.cfg.IntegerStep, v.FloorInteger)
		next := models.Width{Total: integer + fraction, Integer: integer}
		if e.cfg.IntegerMode == IntegerKeepTotal {
			next.Total = v.Current.Total
		}
		s, err := e.try(ctx, v, models.PhaseInteger, models.StageSingle, next)
		if err != nil {
			return err
		}
		if s != stepAccepted {
			break
		}
	}
	return nil
}

// integerFloor raises the variable's floor to the configured one, never above
// the declared integer part
func (e *Engine) integerFloor(v *models.Variable) int {
	floor := max(v.FloorInteger, e.cfg.FloorInteger, 1)
	return min(floor, v.Initial.Integer)
}

// candidateFor builds the full snapshot for one proposal
func (e *Engine) candidateFor(v *models.Variable, w models.Width) models.Candidate {
	var c models.Candidate
	if e.cfg.Context == ContextIsolated {
		c = e.reg.InitialSnapshot()
	} else {
		c = e.reg.Snapshot()
	}
	c[v.Name] = w
	return c
}

// try evaluates one proposal and commits it on acceptance
func (e *Engine) try(ctx context.Context, v *models.Variable, phase models.Phase, stage models.Stage, w models.Width) (step, error) {
	if err := ctx.Err(); err != nil {
		return stepFailed, err
	}

	req := oracle.Request{
		Label:     e.label(v.Name, string(phase), fmt.Sprintf("W%dI%d", w.Total, w.Integer)),
		Candidate: e.candidateFor(v, w),
		Scenario:  e.scenario,
	}

	started := time.Now()
	resp, err := e.oracle.Evaluate(ctx, req)
	e.calls++
	attempt := models.Attempt{
		Variable:  v.Name,
		Phase:     phase,
		Stage:     stage,
		Candidate: w,
		Duration:  time.Since(started),
		At:        started.UTC(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return stepFailed, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stepFailed, err
		}
		resp = oracle.Response{Failure: oracle.NewFailure(models.FailureRuntime, err.Error(), oracle.DefaultDiagnosticLines)}
	}

	if resp.Failure != nil {
		attempt.Outcome = models.OutcomeFailed
		attempt.FailureKind = resp.Failure.Kind
		e.record(v, attempt)
		e.recordError(models.ErrorEntry{
			Context:    fmt.Sprintf("%s %s/%s %s", v.Name, phase, stage, w),
			Kind:       resp.Failure.Kind,
			Diagnostic: resp.Failure.Diagnostic,
			At:         time.Now().UTC(),
		})
		logger.Warn("candidate failed", "variable", v.Name, "phase", phase, "stage", stage,
			"candidate_w", w.Total, "candidate_i", w.Integer, "failure_kind", resp.Failure.Kind)
		return stepFailed, nil
	}

	metric := resp.Metric
	attempt.Metric = &metric
	if !e.cfg.Accepts(metric, e.baseline) {
		attempt.Outcome = models.OutcomeRejected
		e.record(v, attempt)
		logger.Info("candidate rejected", "variable", v.Name, "phase", phase, "stage", stage,
			"candidate_w", w.Total, "candidate_i", w.Integer, "metric", metric)
		return stepRejected, nil
	}

	if err := e.reg.SetWidth(v.Name, w); err != nil {
		return stepFailed, fmt.Errorf("commit %s: %w", v.Name, err)
	}
	attempt.Outcome = models.OutcomeAccepted
	e.record(v, attempt)
	logger.Info("candidate accepted", "variable", v.Name, "phase", phase, "stage", stage,
		"candidate_w", w.Total, "candidate_i", w.Integer, "metric", metric)
	return stepAccepted, nil
}

func (e *Engine) record(v *models.Variable, a models.Attempt) {
	v.History = append(v.History, a)
	e.observer.AttemptRecorded(v, a)
}

func (e *Engine) recordError(entry models.ErrorEntry) {
	e.errorLog = append(e.errorLog, entry)
	e.observer.ErrorRecorded(entry)
}

// finishVariable fixes the terminal status from the attempt history
func (e *Engine) finishVariable(v *models.Variable) {
	if v.Accepted() > 0 {
		v.Status = models.VariableOptimized
	} else if len(v.History) > 0 || (v.Current.Total <= v.Current.Floor() && v.Current.Integer <= v.FloorInteger) {
		v.Status = models.VariableFailed
	}
	logger.Info("variable done", "variable", v.Name, "status", v.Status,
		"width", v.Current.String(), "bits_reduced", v.BitsReduced())
	e.observer.VariableFinished(v)
}
