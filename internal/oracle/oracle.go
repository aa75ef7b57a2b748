// Package oracle evaluates candidate width configurations.
//
// An Oracle turns one full candidate plus a scenario into either a scalar
// accuracy metric or a classified Failure. Oracles own shared build state and
// are not safe for concurrent use; callers serialize.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

const (
	// DefaultDiagnosticLines bounds the diagnostic text kept per failure
	DefaultDiagnosticLines = 5
	maxDiagnosticBytes     = 2048
)

// Request is one evaluation of a candidate configuration
type Request struct {
	Label     string // unique per call; used for script and log names
	Candidate models.Candidate
	Scenario  models.Scenario
}

// Response carries either a metric or a failure
type Response struct {
	Metric  float64
	Failure *Failure
}

// OK reports whether the call produced a metric
func (r Response) OK() bool {
	return r.Failure == nil
}

// Oracle evaluates candidates. A non-nil error is reserved for infrastructure
// problems such as a cancelled context; evaluation failures travel in
// Response.Failure.
type Oracle interface {
	Evaluate(ctx context.Context, req Request) (Response, error)
}

// Func adapts a plain function to the Oracle interface
type Func func(ctx context.Context, req Request) (Response, error)

// Evaluate calls f
func (f Func) Evaluate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Metric is a convenience constructor for a successful response
func Metric(v float64) Response {
	return Response{Metric: v}
}

// Failed is a convenience constructor for a failed response
func Failed(kind models.FailureKind, diagnostic string) Response {
	return Response{Failure: NewFailure(kind, diagnostic, DefaultDiagnosticLines)}
}

// Failure is a classified evaluation failure
type Failure struct {
	Kind       models.FailureKind
	Diagnostic string
}

// NewFailure builds a failure whose diagnostic is bounded to maxLines lines
func NewFailure(kind models.FailureKind, diagnostic string, maxLines int) *Failure {
	return &Failure{Kind: kind, Diagnostic: BoundDiagnostic(diagnostic, maxLines)}
}

func (f *Failure) Error() string {
	if f.Diagnostic == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Diagnostic)
}

// BoundDiagnostic keeps at most maxLines non-blank lines and a fixed byte budget
func BoundDiagnostic(text string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = DefaultDiagnosticLines
	}
	kept := make([]string, 0, maxLines)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == maxLines {
			break
		}
	}
	out := strings.ToValidUTF8(strings.Join(kept, "\n"), string(utf8.RuneError))
	if len(out) > maxDiagnosticBytes {
		n := maxDiagnosticBytes
		for n > 0 && !utf8.RuneStart(out[n]) {
			n--
		}
		out = out[:n]
	}
	return out
}
