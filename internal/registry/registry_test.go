package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

const sampleHeader = `#pragma once
#include "ap_fixed.h"

typedef ap_fixed<32, 8> lr_t;
typedef ap_fixed<24, 6, AP_RND, AP_SAT> grad_t;
typedef ap_fixed<16, 4, AP_TRN> step_t;
typedef ap_fixed<40, 8> _subfunc_tmp_t;
typedef ap_int<16> index_t;
typedef ap_fixed<20, 6> lr_t;
`

func TestParse(t *testing.T) {
	r, err := Parse("MyComplex_1.h", []byte(sampleHeader), Options{FloorInteger: 4})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	names := r.Names()
	want := []string{"lr", "grad", "step"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	w, err := r.Width("grad")
	if err != nil {
		t.Fatalf("Width failed: %v", err)
	}
	if w != (models.Width{Total: 24, Integer: 6}) {
		t.Errorf("expected grad W=24,I=6, got %s", w)
	}

	// first declaration wins
	lr, _ := r.Width("lr")
	if lr.Total != 32 {
		t.Errorf("expected first lr declaration to win, got %s", lr)
	}

	v, ok := r.Variable("step")
	if !ok {
		t.Fatal("expected step variable")
	}
	if v.FloorInteger != 4 || v.Index != 2 || v.Status != models.VariableUnoptimized {
		t.Errorf("unexpected step variable %+v", v)
	}
}

func TestParseCustomReservedPrefix(t *testing.T) {
	r, err := Parse("h", []byte(sampleHeader), Options{ReservedPrefix: "lr"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for _, name := range r.Names() {
		if name == "lr" {
			t.Fatal("lr should be excluded by the reserved prefix")
		}
	}
	if _, ok := r.Variable("_subfunc_tmp"); !ok {
		t.Error("default prefix should not apply when a custom one is set")
	}
}

func TestParseInitialWidthOverride(t *testing.T) {
	start := models.Width{Total: 40, Integer: 8}
	r, err := Parse("h", []byte(sampleHeader), Options{FloorInteger: 4, InitialWidth: &start})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for name, w := range r.Snapshot() {
		if w != start {
			t.Errorf("%s: expected %s, got %s", name, start, w)
		}
	}
}

func TestParseFloorClampedToDeclaredInteger(t *testing.T) {
	r, err := Parse("h", []byte("typedef ap_fixed<12, 3> narrow_t;"), Options{FloorInteger: 4})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	v, _ := r.Variable("narrow")
	if v.FloorInteger != 3 {
		t.Errorf("expected floor clamped to 3, got %d", v.FloorInteger)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts Options
	}{
		{"no declarations", "#pragma once\ntypedef int foo_t;\n", Options{}},
		{"only reserved", "typedef ap_fixed<16, 4> _subfunc_x_t;", Options{}},
		{"below structural floor", "typedef ap_fixed<9, 8> tight_t;", Options{}},
		{"invalid initial width", "typedef ap_fixed<16, 4> x_t;", Options{InitialWidth: &models.Width{Total: 5, Integer: 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("src.h", []byte(tt.src), tt.opts)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if pe.Source != "src.h" {
				t.Errorf("expected source src.h, got %s", pe.Source)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "MyComplex_1.h")
	if err := os.WriteFile(path, []byte(sampleHeader), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r, err := Load(path, Options{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.Len() != 3 || r.Source() != path {
		t.Errorf("unexpected registry len=%d source=%s", r.Len(), r.Source())
	}

	_, err = Load(filepath.Join(dir, "missing.h"), Options{})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError for missing file, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestSetWidth(t *testing.T) {
	r, err := Parse("h", []byte("typedef ap_fixed<32, 8> lr_t;"), Options{FloorInteger: 4})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := r.SetWidth("lr", models.Width{Total: 20, Integer: 6}); err != nil {
		t.Fatalf("SetWidth failed: %v", err)
	}
	if w, _ := r.Width("lr"); w.Total != 20 || w.Integer != 6 {
		t.Errorf("expected W=20,I=6, got %s", w)
	}

	bad := []models.Width{
		{Total: 7, Integer: 6},  // structural floor
		{Total: 10, Integer: 3}, // integer floor
		{Total: 36, Integer: 8}, // grows
		{Total: 30, Integer: 9}, // integer grows
	}
	for _, w := range bad {
		if err := r.SetWidth("lr", w); !errors.Is(err, ErrInvalidWidth) {
			t.Errorf("SetWidth(%s): expected ErrInvalidWidth, got %v", w, err)
		}
	}
	if err := r.SetWidth("nope", models.Width{Total: 8, Integer: 4}); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("expected ErrUnknownVariable, got %v", err)
	}
	if _, err := r.Width("nope"); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("expected ErrUnknownVariable, got %v", err)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	r, _ := Parse("h", []byte(sampleHeader), Options{})
	snap := r.Snapshot()
	snap["lr"] = models.Width{Total: 4, Integer: 2}
	if w, _ := r.Width("lr"); w.Total != 32 {
		t.Errorf("snapshot mutation leaked into registry: %s", w)
	}
	_ = r.SetWidth("lr", models.Width{Total: 28, Integer: 8})
	if r.InitialSnapshot()["lr"].Total != 32 {
		t.Error("initial snapshot should not follow commits")
	}
}

func TestRenderRoundTrip(t *testing.T) {
	r, err := Parse("h", []byte(sampleHeader), Options{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_ = r.SetWidth("grad", models.Width{Total: 14, Integer: 4})

	out := string(r.Render())
	if !strings.HasPrefix(out, "#pragma once\n#include \"ap_fixed.h\"\n") {
		t.Errorf("unexpected header prologue:\n%s", out)
	}
	if !strings.Contains(out, "typedef ap_fixed<14, 4> grad_t;") {
		t.Errorf("expected committed grad width in output:\n%s", out)
	}
	// sorted by name
	if strings.Index(out, "grad_t") > strings.Index(out, "lr_t") || strings.Index(out, "lr_t") > strings.Index(out, "step_t") {
		t.Errorf("expected declarations sorted by name:\n%s", out)
	}

	back, err := Parse("rendered", []byte(out), Options{})
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	for name, w := range r.Snapshot() {
		if got, _ := back.Width(name); got != w {
			t.Errorf("%s: expected %s after round trip, got %s", name, w, got)
		}
	}
}

func TestMaterializeUsesCandidate(t *testing.T) {
	r, _ := Parse("h", []byte("typedef ap_fixed<32, 8> lr_t;"), Options{Includes: []string{"<cstdint>"}})
	out := string(r.Materialize(models.Candidate{"lr": {Total: 12, Integer: 4}}))
	if !strings.Contains(out, "#include <cstdint>") {
		t.Errorf("expected custom include:\n%s", out)
	}
	if !strings.Contains(out, "ap_fixed<12, 4> lr_t") {
		t.Errorf("expected candidate width:\n%s", out)
	}
	if w, _ := r.Width("lr"); w.Total != 32 {
		t.Error("Materialize must not commit widths")
	}
}
