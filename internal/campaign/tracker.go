package campaign

import (
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

// VariableView is a read-only copy of one variable's progress
type VariableView struct {
	Name     string                `json:"name"`
	Initial  models.Width          `json:"initial"`
	Current  models.Width          `json:"current"`
	Floor    int                   `json:"floor_integer_width"`
	Status   models.VariableStatus `json:"status"`
	Attempts int                   `json:"attempts"`
	Accepted int                   `json:"accepted"`
}

// View is a read-only copy of the campaign state
type View struct {
	ID          string                `json:"campaign_id"`
	Scenario    models.Scenario       `json:"scenario"`
	Status      models.CampaignStatus `json:"status"`
	Baseline    *float64              `json:"baseline_metric,omitempty"`
	Current     string                `json:"current_variable,omitempty"`
	Done        int                   `json:"done"`
	Total       int                   `json:"total"`
	OracleCalls int                   `json:"oracle_calls"`
	Errors      int                   `json:"errors"`
	Elapsed     string                `json:"elapsed"`
	Remaining   string                `json:"remaining,omitempty"`
	Error       string                `json:"error,omitempty"`
	StartedAt   time.Time             `json:"started_at,omitzero"`
	EndedAt     time.Time             `json:"ended_at,omitzero"`
}

// Tracker holds the live campaign state read by the status server
type Tracker struct {
	mu        sync.RWMutex
	id        string
	scenario  models.Scenario
	status    models.CampaignStatus
	baseline  *float64
	current   string
	done      int
	calls     int
	errMsg    string
	order     []string
	vars      map[string]*VariableView
	errors    []models.ErrorEntry
	startedAt time.Time
	endedAt   time.Time
}

// NewTracker creates a tracker in the pending state
func NewTracker() *Tracker {
	return &Tracker{
		status: models.CampaignPending,
		vars:   make(map[string]*VariableView),
	}
}

// Start marks the campaign as running
func (t *Tracker) Start(id string, scenario models.Scenario) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = id
	t.scenario = scenario
	t.status = models.CampaignRunning
	t.startedAt = time.Now()
}

// SetVariables registers the variables in processing order
func (t *Tracker) SetVariables(vars []*models.Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = t.order[:0]
	t.vars = make(map[string]*VariableView, len(vars))
	for _, v := range vars {
		t.order = append(t.order, v.Name)
		t.vars[v.Name] = &VariableView{
			Name:    v.Name,
			Initial: v.Initial,
			Current: v.Current,
			Floor:   v.FloorInteger,
			Status:  v.Status,
		}
	}
}

// SetBaseline records the baseline metric
func (t *Tracker) SetBaseline(metric float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = &metric
	t.calls++
}

// Finish moves the campaign to a terminal status
func (t *Tracker) Finish(status models.CampaignStatus, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	t.current = ""
	t.endedAt = time.Now()
	if err != nil {
		t.errMsg = err.Error()
	}
}

func (t *Tracker) variableStarted(v *models.Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = v.Name
}

func (t *Tracker) attemptRecorded(v *models.Variable, a models.Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if vv, ok := t.vars[v.Name]; ok {
		vv.Attempts++
		if a.Outcome == models.OutcomeAccepted {
			vv.Accepted++
		}
		vv.Current = v.Current
	}
}

func (t *Tracker) errorRecorded(e models.ErrorEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, e)
}

func (t *Tracker) variableFinished(v *models.Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	if vv, ok := t.vars[v.Name]; ok {
		vv.Current = v.Current
		vv.Status = v.Status
	}
}

// refresh copies final widths after the margin pass
func (t *Tracker) refresh(vars []*models.Variable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, v := range vars {
		if vv, ok := t.vars[v.Name]; ok {
			vv.Current = v.Current
			vv.Status = v.Status
		}
	}
}

// View returns a snapshot of the campaign
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	view := View{
		ID:          t.id,
		Scenario:    t.scenario,
		Status:      t.status,
		Current:     t.current,
		Done:        t.done,
		Total:       len(t.order),
		OracleCalls: t.calls,
		Errors:      len(t.errors),
		Error:       t.errMsg,
		StartedAt:   t.startedAt,
		EndedAt:     t.endedAt,
	}
	if t.baseline != nil {
		b := *t.baseline
		view.Baseline = &b
	}
	if !t.startedAt.IsZero() {
		end := t.endedAt
		if end.IsZero() {
			end = time.Now()
		}
		elapsed := end.Sub(t.startedAt)
		view.Elapsed = utils.FormatDuration(elapsed)
		if !t.status.Terminal() && t.done > 0 {
			view.Remaining = utils.FormatDuration(utils.EstimateRemaining(elapsed, t.done, len(t.order)))
		}
	}
	return view
}

// Variables returns the per-variable views in processing order
func (t *Tracker) Variables() []VariableView {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]VariableView, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.vars[name])
	}
	return out
}

// Errors returns the recorded error log
func (t *Tracker) Errors() []models.ErrorEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.ErrorEntry, len(t.errors))
	copy(out, t.errors)
	return out
}
