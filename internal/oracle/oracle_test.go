package oracle

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

func TestBoundDiagnostic(t *testing.T) {
	text := "line1\n\n  \nline2\nline3\r\nline4\nline5\nline6\nline7"
	got := BoundDiagnostic(text, 5)
	lines := strings.Split(got, "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "line1" || lines[4] != "line5" {
		t.Errorf("unexpected lines %q", lines)
	}
	if strings.Contains(got, "\r") {
		t.Errorf("expected carriage returns trimmed, got %q", got)
	}

	long := strings.Repeat("é", maxDiagnosticBytes)
	if b := BoundDiagnostic(long, 5); len(b) > maxDiagnosticBytes {
		t.Errorf("expected at most %d bytes, got %d", maxDiagnosticBytes, len(b))
	}

	if got := BoundDiagnostic("a\nb\nc\nd\ne\nf", 0); strings.Count(got, "\n") != DefaultDiagnosticLines-1 {
		t.Errorf("expected default line bound, got %q", got)
	}
}

func TestBoundDiagnosticInvalidUTF8(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		prefix string
	}{
		{"invalid leading byte", "\xff compile failed " + strings.Repeat("x", 3000), "\uFFFD compile failed"},
		{"latin-1 accent", "caf\xe9 overflow\n" + strings.Repeat("y", 3000), "caf\uFFFD overflow"},
		{"multibyte at the cut", strings.Repeat("a", maxDiagnosticBytes-1) + "é" + strings.Repeat("b", 10), "aaaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BoundDiagnostic(tt.text, 5)
			if len(got) == 0 || len(got) > maxDiagnosticBytes {
				t.Fatalf("expected 1..%d bytes, got %d", maxDiagnosticBytes, len(got))
			}
			if !utf8.ValidString(got) {
				t.Errorf("expected valid UTF-8, got %q", got[:min(len(got), 40)])
			}
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got[:min(len(got), 40)])
			}
		})
	}
}

func TestFailureError(t *testing.T) {
	f := NewFailure(models.FailureBuild, "x.cpp:1: error: boom", 5)
	if f.Error() != "BuildFailure: x.cpp:1: error: boom" {
		t.Errorf("unexpected error text %q", f.Error())
	}
	if (&Failure{Kind: models.FailureTimeout}).Error() != "Timeout" {
		t.Error("expected bare kind without diagnostic")
	}
}

func TestFuncAdapter(t *testing.T) {
	var o Oracle = Func(func(ctx context.Context, req Request) (Response, error) {
		if req.Candidate["lr"].Total >= 20 {
			return Metric(0.001), nil
		}
		return Failed(models.FailureRuntime, "diverged"), nil
	})

	resp, err := o.Evaluate(context.Background(), Request{Candidate: models.Candidate{"lr": {Total: 24, Integer: 8}}})
	if err != nil || !resp.OK() || resp.Metric != 0.001 {
		t.Fatalf("unexpected response %+v (%v)", resp, err)
	}
	resp, _ = o.Evaluate(context.Background(), Request{Candidate: models.Candidate{"lr": {Total: 12, Integer: 8}}})
	if resp.OK() || resp.Failure.Kind != models.FailureRuntime {
		t.Fatalf("expected runtime failure, got %+v", resp)
	}
}
