package models

import (
	"fmt"
	"sort"
	"time"
)

// MinFractionBits is the number of fractional bits every representation keeps.
// Together with the integer part this gives the structural floor Total >= Integer+2.
const MinFractionBits = 2

// Width is a fixed-point representation: total bit count and integer bits (sign included).
type Width struct {
	Total   int `json:"total_width"`
	Integer int `json:"integer_width"`
}

// Fraction returns the number of fractional bits
func (w Width) Fraction() int {
	return w.Total - w.Integer
}

// Floor returns the narrowest total width allowed for the current integer width
func (w Width) Floor() int {
	return w.Integer + MinFractionBits
}

// Valid reports whether the width respects the structural floor
func (w Width) Valid() bool {
	return w.Integer >= 1 && w.Total >= w.Floor()
}

func (w Width) String() string {
	return fmt.Sprintf("W=%d,I=%d", w.Total, w.Integer)
}

// VariableStatus represents the optimization state of a variable
type VariableStatus string

const (
	VariableUnoptimized VariableStatus = "unoptimized"
	VariableOptimized   VariableStatus = "optimized"
	VariableFailed      VariableStatus = "failed"
)

// Phase identifies which part of the search produced an attempt
type Phase string

const (
	PhaseBaseline   Phase = "baseline"
	PhaseFractional Phase = "fractional"
	PhaseInteger    Phase = "integer"
)

// Stage identifies the step granularity within a phase
type Stage string

const (
	StageCoarse Stage = "coarse"
	StageFine   Stage = "fine"
	StageSingle Stage = "single"
)

// Outcome is the verdict for one oracle call
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// FailureKind classifies an oracle failure
type FailureKind string

const (
	FailureBuild             FailureKind = "BuildFailure"
	FailureRuntime           FailureKind = "RuntimeFailure"
	FailureTimeout           FailureKind = "Timeout"
	FailureMetricUnavailable FailureKind = "MetricUnavailable"
)

// Valid reports whether k is one of the known failure kinds
func (k FailureKind) Valid() bool {
	switch k {
	case FailureBuild, FailureRuntime, FailureTimeout, FailureMetricUnavailable:
		return true
	}
	return false
}

// Attempt is one candidate width tried for a variable
type Attempt struct {
	Variable    string        `json:"variable"`
	Phase       Phase         `json:"phase"`
	Stage       Stage         `json:"stage"`
	Candidate   Width         `json:"candidate"`
	Outcome     Outcome       `json:"outcome"`
	Metric      *float64      `json:"metric,omitempty"`
	FailureKind FailureKind   `json:"failure_kind,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	At          time.Time     `json:"at"`
}

// Variable is a tunable fixed-point type and its search state
type Variable struct {
	Name         string
	Index        int // declaration order
	Initial      Width
	Current      Width
	FloorInteger int
	Status       VariableStatus
	History      []Attempt
}

// BitsReduced returns how many total bits the variable lost relative to its initial width
func (v *Variable) BitsReduced() int {
	return v.Initial.Total - v.Current.Total
}

// Accepted returns the number of accepted attempts in the history
func (v *Variable) Accepted() int {
	n := 0
	for _, a := range v.History {
		if a.Outcome == OutcomeAccepted {
			n++
		}
	}
	return n
}

// Result returns the optimization result for the variable
func (v *Variable) Result() Result {
	return Result{
		Name:           v.Name,
		InitialTotal:   v.Initial.Total,
		InitialInteger: v.Initial.Integer,
		FinalTotal:     v.Current.Total,
		FinalInteger:   v.Current.Integer,
		BitsReduced:    v.BitsReduced(),
		Status:         v.Status,
	}
}

// Candidate is a full system snapshot: one width per known variable.
type Candidate map[string]Width

// Names returns the variable names sorted lexically
func (c Candidate) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Scenario describes the evaluation conditions of a campaign
type Scenario struct {
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	Size       int     `json:"size" yaml:"size"`
	Complexity int     `json:"complexity" yaml:"complexity"`
	NoiseLevel float64 `json:"noise_level" yaml:"noise_level"`
}

// Label returns a filesystem-friendly identifier such as "8_8_16_SNR25"
func (s Scenario) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%d_%d_%d_SNR%g", s.Size, s.Size, s.Complexity, s.NoiseLevel)
}

// ErrorEntry is one entry of the campaign error log
type ErrorEntry struct {
	Context    string      `json:"context"`
	Kind       FailureKind `json:"failure_kind"`
	Diagnostic string      `json:"diagnostic_text"`
	At         time.Time   `json:"at"`
}

// Result is the final outcome for one variable
type Result struct {
	Name           string         `json:"name"`
	InitialTotal   int            `json:"initial_total_width"`
	InitialInteger int            `json:"initial_integer_width"`
	FinalTotal     int            `json:"final_total_width"`
	FinalInteger   int            `json:"final_integer_width"`
	BitsReduced    int            `json:"bits_reduced"`
	Status         VariableStatus `json:"status"`
}

// Summary aggregates per-variable results
type Summary struct {
	Variables        int     `json:"variables"`
	Optimized        int     `json:"optimized"`
	Failed           int     `json:"failed"`
	TotalBitsReduced int     `json:"total_bits_reduced"`
	MeanBitsReduced  float64 `json:"mean_bits_reduced"`
	PercentReduced   float64 `json:"percent_reduced"`
}

// Record is the persisted result of a campaign
type Record struct {
	CampaignID     string         `json:"campaign_id"`
	Scenario       Scenario       `json:"scenario"`
	BaselineMetric float64        `json:"baseline_metric"`
	Threshold      float64        `json:"threshold"`
	Acceptance     string         `json:"acceptance"`
	Order          string         `json:"order"`
	ContextMode    string         `json:"context_mode"`
	IntegerMode    string         `json:"integer_mode"`
	Margin         int            `json:"margin"`
	OracleCalls    int            `json:"oracle_calls"`
	PerVariable    []Result       `json:"per_variable"`
	ErrorLog       []ErrorEntry   `json:"error_log"`
	Summary        Summary        `json:"summary"`
	Status         CampaignStatus `json:"status"`
	Timestamp      time.Time      `json:"timestamp"`
}

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "pending"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether the status is final
func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignFailed || s == CampaignCancelled
}
