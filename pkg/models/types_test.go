package models

import (
	"testing"
)

func TestWidthFloorAndValid(t *testing.T) {
	tests := []struct {
		name  string
		w     Width
		floor int
		valid bool
	}{
		{"wide", Width{Total: 40, Integer: 8}, 10, true},
		{"at floor", Width{Total: 6, Integer: 4}, 6, true},
		{"below floor", Width{Total: 5, Integer: 4}, 6, false},
		{"zero integer", Width{Total: 4, Integer: 0}, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Floor(); got != tt.floor {
				t.Errorf("Floor() = %d, want %d", got, tt.floor)
			}
			if got := tt.w.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}

	if f := (Width{Total: 20, Integer: 8}).Fraction(); f != 12 {
		t.Errorf("Fraction() = %d, want 12", f)
	}
}

func TestCandidateNamesSorted(t *testing.T) {
	c := Candidate{"b": {Total: 30, Integer: 6}, "a": {Total: 40, Integer: 8}}
	names := c.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestVariableResult(t *testing.T) {
	v := &Variable{
		Name:    "lr",
		Initial: Width{Total: 40, Integer: 8},
		Current: Width{Total: 22, Integer: 4},
		Status:  VariableOptimized,
		History: []Attempt{
			{Outcome: OutcomeAccepted},
			{Outcome: OutcomeRejected},
			{Outcome: OutcomeAccepted},
		},
	}

	r := v.Result()
	if r.BitsReduced != 18 {
		t.Errorf("BitsReduced = %d, want 18", r.BitsReduced)
	}
	if r.FinalTotal != 22 || r.FinalInteger != 4 {
		t.Errorf("unexpected final width (%d,%d)", r.FinalTotal, r.FinalInteger)
	}
	if v.Accepted() != 2 {
		t.Errorf("Accepted() = %d, want 2", v.Accepted())
	}
}

func TestScenarioLabel(t *testing.T) {
	s := Scenario{Size: 8, Complexity: 16, NoiseLevel: 25}
	if got := s.Label(); got != "8_8_16_SNR25" {
		t.Errorf("Label() = %q", got)
	}
	s.Name = "custom"
	if got := s.Label(); got != "custom" {
		t.Errorf("Label() with name = %q", got)
	}
}

func TestFailureKindValid(t *testing.T) {
	for _, k := range []FailureKind{FailureBuild, FailureRuntime, FailureTimeout, FailureMetricUnavailable} {
		if !k.Valid() {
			t.Errorf("expected %s to be valid", k)
		}
	}
	if FailureKind("Other").Valid() {
		t.Error("unexpected valid kind")
	}
	if !CampaignCancelled.Terminal() || CampaignRunning.Terminal() {
		t.Error("unexpected terminal classification")
	}
}
