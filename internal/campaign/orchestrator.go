// Package campaign runs one bit-width optimization campaign end to end:
// registry, baseline, search, robustness margin and persistence.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/aggregate"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/journal"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/oracle"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/persist"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/registry"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/search"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/config"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrBaselineUnavailable is returned when the baseline oracle call fails
var ErrBaselineUnavailable = errors.New("baseline metric unavailable")

// Outcome is what a campaign produced
type Outcome struct {
	CampaignID string
	Status     models.CampaignStatus
	Baseline   float64
	Record     models.Record
	Paths      persist.Paths
	Search     *search.Result
}

// Orchestrator wires the campaign components together. An Orchestrator runs
// a single campaign.
type Orchestrator struct {
	cfg     *config.Config
	oracle  oracle.Oracle
	store   journal.Store
	tracker *Tracker
	metrics prometheus.Registerer
	cleaner LogCleaner
	margin  *aggregate.Pass
}

// NewOrchestrator creates an orchestrator; a nil store uses the in-memory journal
func NewOrchestrator(cfg *config.Config, o oracle.Oracle, store journal.Store) *Orchestrator {
	if store == nil {
		store = journal.NewMemoryStore()
	}
	return &Orchestrator{
		cfg:     cfg,
		oracle:  o,
		store:   store,
		tracker: NewTracker(),
		margin:  aggregate.NewPass(cfg.Search.Margin),
	}
}

// WithTracker shares a tracker, typically with the status server
func (o *Orchestrator) WithTracker(t *Tracker) *Orchestrator {
	if t != nil {
		o.tracker = t
	}
	return o
}

// WithMetrics registers the search collectors on reg
func (o *Orchestrator) WithMetrics(reg prometheus.Registerer) *Orchestrator {
	o.metrics = reg
	return o
}

// WithLogCleaner removes per-call logs after every variable
func (o *Orchestrator) WithLogCleaner(c LogCleaner) *Orchestrator {
	o.cleaner = c
	return o
}

// Tracker returns the live campaign state
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// SearchConfig maps the configured policy onto engine knobs
func SearchConfig(s config.Search) search.Config {
	return search.Config{
		CoarseStep:   s.CoarseStep,
		FineStep:     s.FineStep,
		IntegerStep:  s.IntegerStep,
		FloorInteger: s.FloorInteger,
		Threshold:    s.Threshold,
		Acceptance:   search.Acceptance(s.Acceptance),
		Order:        search.Order(s.Order),
		Context:      search.ContextMode(s.ContextMode),
		IntegerMode:  search.IntegerMode(s.IntegerMode),
	}
}

// Run executes the campaign. A cancelled ctx stops the search between oracle
// calls; the widths reached so far are still persisted and the outcome carries
// the cancelled status. Errors are returned for an unparsable source, a
// failed baseline, or a failed write.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	cfg := o.cfg
	id := utils.NewCampaignID()
	log := logger.With("campaign_id", utils.ShortID(id), "scenario", cfg.Scenario.Label())
	o.tracker.Start(id, cfg.Scenario)
	// bookkeeping outlives cancellation of the search
	bg := context.WithoutCancel(ctx)

	reg, err := registry.Load(o.sourcePath(), o.registryOptions())
	if err != nil {
		o.tracker.Finish(models.CampaignFailed, err)
		return nil, err
	}
	o.tracker.SetVariables(search.OrderVariables(reg.Variables(), search.Order(cfg.Search.Order)))
	log.Info("campaign started", "variables", reg.Len(), "source", reg.Source())

	if err := o.store.Init(bg); err != nil {
		o.tracker.Finish(models.CampaignFailed, err)
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := o.store.CreateCampaign(bg, journal.Campaign{ID: id, Scenario: cfg.Scenario, StartedAt: time.Now()}); err != nil {
		log.Warn("failed to journal campaign", "error", err)
	}

	baseline, err := o.measureBaseline(ctx, id, reg)
	if err != nil {
		status := models.CampaignFailed
		if ctx.Err() != nil {
			status = models.CampaignCancelled
		}
		o.finish(bg, id, status, 0, err)
		return nil, err
	}
	o.tracker.SetBaseline(baseline)
	log.Info("baseline measured", "metric", baseline, "threshold", cfg.Search.Threshold)

	engine, err := search.NewEngine(SearchConfig(cfg.Search), reg, o.oracle, cfg.Scenario, baseline)
	if err != nil {
		o.finish(bg, id, models.CampaignFailed, baseline, err)
		return nil, err
	}
	rec := &recorder{
		ctx:        bg,
		campaignID: id,
		tracker:    o.tracker,
		store:      o.store,
		cleaner:    o.cleaner,
	}
	if o.metrics != nil {
		rec.metrics = newSearchMetrics(o.metrics)
	}
	engine.WithObserver(rec).WithProgressReporter(func(p search.Progress) {
		log.Info("variable finished",
			"variable", p.Variable,
			"done", p.Done,
			"total", p.Total,
			"elapsed", utils.FormatDuration(p.Elapsed),
			"remaining", utils.FormatDuration(p.Remaining))
	})

	res, runErr := engine.Run(ctx)
	status := models.CampaignCompleted
	margin := 0
	if runErr != nil {
		status = models.CampaignCancelled
		log.Warn("campaign interrupted, saving partial results", "finished", res.Finished, "error", runErr)
	} else {
		// the margin only applies once every variable has finished both phases
		if _, err := o.margin.Apply(reg.Variables()); err != nil {
			o.finish(bg, id, models.CampaignFailed, baseline, err)
			return nil, err
		}
		margin = cfg.Search.Margin
		o.tracker.refresh(reg.Variables())
	}

	paths := o.outputPaths()
	record := persist.Serialize(reg, res.ErrorLog, persist.Meta{
		CampaignID:  id,
		Scenario:    cfg.Scenario,
		Baseline:    baseline,
		Threshold:   cfg.Search.Threshold,
		Acceptance:  cfg.Search.Acceptance,
		Order:       cfg.Search.Order,
		ContextMode: cfg.Search.ContextMode,
		IntegerMode: cfg.Search.IntegerMode,
		Margin:      margin,
		OracleCalls: res.OracleCalls + 1,
		Status:      status,
	})
	if err := persist.Write(paths, record, persist.Render(reg)); err != nil {
		o.finish(bg, id, models.CampaignFailed, baseline, err)
		return nil, err
	}
	o.finish(bg, id, status, baseline, runErr)

	s := record.Summary
	log.Info("campaign finished",
		"status", status,
		"optimized", s.Optimized,
		"failed", s.Failed,
		"bits_reduced", s.TotalBitsReduced,
		"percent_reduced", s.PercentReduced,
		"oracle_calls", record.OracleCalls,
		"errors", len(record.ErrorLog),
		"record", paths.Record,
		"header", paths.Header)

	return &Outcome{
		CampaignID: id,
		Status:     status,
		Baseline:   baseline,
		Record:     record,
		Paths:      paths,
		Search:     res,
	}, nil
}

func (o *Orchestrator) measureBaseline(ctx context.Context, id string, reg *registry.Registry) (float64, error) {
	req := oracle.Request{
		Label:     utils.CallLabel(utils.ShortID(id), string(models.PhaseBaseline)),
		Candidate: reg.Snapshot(),
		Scenario:  o.cfg.Scenario,
	}
	start := time.Now()
	resp, err := o.oracle.Evaluate(ctx, req)
	attempt := models.Attempt{
		Phase:    models.PhaseBaseline,
		Stage:    models.StageSingle,
		Duration: time.Since(start),
		At:       start,
	}
	switch {
	case err != nil:
		return 0, fmt.Errorf("%w: %w", ErrBaselineUnavailable, err)
	case resp.Failure != nil:
		attempt.Outcome = models.OutcomeFailed
		attempt.FailureKind = resp.Failure.Kind
		o.journalAttempt(ctx, id, attempt)
		return 0, fmt.Errorf("%w: %w", ErrBaselineUnavailable, resp.Failure)
	}
	m := resp.Metric
	attempt.Outcome = models.OutcomeAccepted
	attempt.Metric = &m
	o.journalAttempt(ctx, id, attempt)
	return resp.Metric, nil
}

func (o *Orchestrator) journalAttempt(ctx context.Context, id string, a models.Attempt) {
	if err := o.store.RecordAttempt(context.WithoutCancel(ctx), id, a); err != nil {
		logger.Warn("failed to journal attempt", "phase", a.Phase, "error", err)
	}
}

func (o *Orchestrator) finish(ctx context.Context, id string, status models.CampaignStatus, baseline float64, err error) {
	o.tracker.Finish(status, err)
	if jerr := o.store.FinishCampaign(ctx, id, status, baseline); jerr != nil {
		logger.Warn("failed to journal campaign status", "status", status, "error", jerr)
	}
}

func (o *Orchestrator) sourcePath() string {
	p := o.cfg.Source.Header
	if filepath.IsAbs(p) || o.cfg.Oracle.Workdir == "" {
		return p
	}
	return filepath.Join(o.cfg.Oracle.Workdir, p)
}

func (o *Orchestrator) registryOptions() registry.Options {
	opts := registry.Options{
		ReservedPrefix: o.cfg.Source.ReservedPrefix,
		FloorInteger:   o.cfg.Search.FloorInteger,
		Includes:       o.cfg.Source.Includes,
	}
	if iw := o.cfg.Search.InitialWidth; iw != nil {
		w := iw.Width()
		opts.InitialWidth = &w
	}
	return opts
}

func (o *Orchestrator) outputPaths() persist.Paths {
	out := o.cfg.Output
	paths := persist.DefaultPaths(out.Dir, out.HeaderPrefix, o.cfg.Scenario)
	if out.RecordFile != "" {
		paths.Record = filepath.Join(out.Dir, out.RecordFile)
	}
	if out.HeaderFile != "" {
		paths.Header = filepath.Join(out.Dir, out.HeaderFile)
	}
	return paths
}
