package aggregate

import (
	"errors"
	"testing"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

func searched() []*models.Variable {
	return []*models.Variable{
		{Name: "a", Initial: models.Width{Total: 40, Integer: 8}, Current: models.Width{Total: 20, Integer: 4}, Status: models.VariableOptimized},
		{Name: "b", Initial: models.Width{Total: 40, Integer: 8}, Current: models.Width{Total: 40, Integer: 8}, Status: models.VariableFailed},
	}
}

func TestApplyMargin(t *testing.T) {
	vars := searched()
	results := ApplyMargin(vars, 2)

	if vars[0].Current != (models.Width{Total: 22, Integer: 4}) {
		t.Errorf("expected a at W=22,I=4, got %s", vars[0].Current)
	}
	if results[0].FinalTotal != 22 || results[0].FinalInteger != 4 || results[0].BitsReduced != 18 {
		t.Errorf("unexpected result %+v", results[0])
	}
	// the margin applies to every variable, reduced or not
	if results[1].FinalTotal != 42 || results[1].BitsReduced != -2 {
		t.Errorf("unexpected result %+v", results[1])
	}
}

func TestApplyMarginNotIdempotent(t *testing.T) {
	vars := searched()
	first := ApplyMargin(vars, 2)
	second := ApplyMargin(vars, 2)
	if second[0].FinalTotal <= first[0].FinalTotal {
		t.Errorf("second application must widen again: %d then %d", first[0].FinalTotal, second[0].FinalTotal)
	}
	if second[0].FinalTotal != 24 {
		t.Errorf("expected 24 after two passes, got %d", second[0].FinalTotal)
	}
}

func TestPassRunsOnce(t *testing.T) {
	vars := searched()
	p := NewPass(DefaultMargin)
	if p.Applied() {
		t.Fatal("fresh pass reports applied")
	}
	if _, err := p.Apply(vars); err != nil {
		t.Fatalf("first Apply failed: %v", err)
	}
	if _, err := p.Apply(vars); !errors.Is(err, ErrMarginApplied) {
		t.Fatalf("expected ErrMarginApplied, got %v", err)
	}
	if vars[0].Current.Total != 22 {
		t.Errorf("margin applied more than once: %s", vars[0].Current)
	}
	if !p.Applied() {
		t.Error("expected pass to report applied")
	}
}

func TestSummarize(t *testing.T) {
	results := []models.Result{
		{Name: "a", InitialTotal: 40, FinalTotal: 22, BitsReduced: 18, Status: models.VariableOptimized},
		{Name: "b", InitialTotal: 40, FinalTotal: 22, BitsReduced: 18, Status: models.VariableOptimized},
		{Name: "c", InitialTotal: 20, FinalTotal: 22, BitsReduced: -2, Status: models.VariableFailed},
	}
	s := Summarize(results)
	if s.Variables != 3 || s.Optimized != 2 || s.Failed != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.TotalBitsReduced != 34 {
		t.Errorf("expected 34 bits reduced, got %d", s.TotalBitsReduced)
	}
	if s.MeanBitsReduced != 11.33 {
		t.Errorf("expected mean 11.33, got %v", s.MeanBitsReduced)
	}
	if s.PercentReduced != 34 {
		t.Errorf("expected 34%%, got %v", s.PercentReduced)
	}

	if empty := Summarize(nil); empty.Variables != 0 || empty.PercentReduced != 0 {
		t.Errorf("unexpected empty summary %+v", empty)
	}
}
