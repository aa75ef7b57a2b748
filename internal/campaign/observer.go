package campaign

import (
	"context"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/journal"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/search"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/logger"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LogCleaner removes per-call artifacts once a variable is done
type LogCleaner interface {
	RemoveLogs(prefix string) (int, error)
}

type searchMetrics struct {
	finished *prometheus.CounterVec
	errors   *prometheus.CounterVec
	width    *prometheus.GaugeVec
}

func newSearchMetrics(reg prometheus.Registerer) *searchMetrics {
	f := promauto.With(reg)
	return &searchMetrics{
		finished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bitwidth_variables_finished_total",
			Help: "Variables whose search finished, by final status",
		}, []string{"status"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bitwidth_search_errors_total",
			Help: "Error log entries by failure kind",
		}, []string{"kind"}),
		width: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bitwidth_variable_total_width",
			Help: "Current total width of each variable",
		}, []string{"variable"}),
	}
}

// recorder fans engine events out to the tracker, the journal, metrics and
// the log cleaner. Journal failures are logged and never stop the search.
type recorder struct {
	ctx        context.Context
	campaignID string
	tracker    *Tracker
	store      journal.Store
	metrics    *searchMetrics
	cleaner    LogCleaner
}

var _ search.Observer = (*recorder)(nil)

func (r *recorder) VariableStarted(v *models.Variable, index, total int) {
	r.tracker.variableStarted(v)
}

func (r *recorder) AttemptRecorded(v *models.Variable, a models.Attempt) {
	r.tracker.attemptRecorded(v, a)
	if r.metrics != nil {
		r.metrics.width.WithLabelValues(v.Name).Set(float64(v.Current.Total))
	}
	if err := r.store.RecordAttempt(r.ctx, r.campaignID, a); err != nil {
		logger.Warn("failed to journal attempt", "variable", v.Name, "error", err)
	}
}

func (r *recorder) ErrorRecorded(e models.ErrorEntry) {
	r.tracker.errorRecorded(e)
	if r.metrics != nil {
		r.metrics.errors.WithLabelValues(string(e.Kind)).Inc()
	}
	if err := r.store.RecordError(r.ctx, r.campaignID, e); err != nil {
		logger.Warn("failed to journal error", "context", e.Context, "error", err)
	}
}

func (r *recorder) VariableFinished(v *models.Variable) {
	r.tracker.variableFinished(v)
	if r.metrics != nil {
		r.metrics.finished.WithLabelValues(string(v.Status)).Inc()
		r.metrics.width.WithLabelValues(v.Name).Set(float64(v.Current.Total))
	}
	if r.cleaner != nil {
		n, err := r.cleaner.RemoveLogs(v.Name)
		if err != nil {
			logger.Warn("failed to remove call logs", "variable", v.Name, "error", err)
		} else if n > 0 {
			logger.Debug("removed call logs", "variable", v.Name, "files", n)
		}
	}
}
