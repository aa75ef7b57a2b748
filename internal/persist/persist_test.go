package persist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/aggregate"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/registry"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

const header = `typedef ap_fixed<40, 8> acc_t;
typedef ap_fixed<32, 6> coef_t;
`

func finishedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse("types.h", []byte(header), registry.Options{FloorInteger: 4})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := reg.SetWidth("acc", models.Width{Total: 20, Integer: 4}); err != nil {
		t.Fatalf("SetWidth failed: %v", err)
	}
	v, _ := reg.Variable("acc")
	v.Status = models.VariableOptimized
	c, _ := reg.Variable("coef")
	c.Status = models.VariableFailed
	aggregate.ApplyMargin(reg.Variables(), 2)
	return reg
}

func TestSerialize(t *testing.T) {
	reg := finishedRegistry(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	errs := []models.ErrorEntry{{Context: "coef fractional/coarse W=28,I=6", Kind: models.FailureBuild, Diagnostic: "error: overflow"}}

	rec := Serialize(reg, errs, Meta{
		CampaignID: "c-1",
		Scenario:   models.Scenario{Size: 8, Complexity: 16, NoiseLevel: 25},
		Baseline:   0.001,
		Threshold:  0.01,
		Margin:     2,
		Status:     models.CampaignCompleted,
		Timestamp:  ts,
	})

	if len(rec.PerVariable) != 2 {
		t.Fatalf("expected 2 results, got %d", len(rec.PerVariable))
	}
	acc := rec.PerVariable[0]
	if acc.Name != "acc" || acc.FinalTotal != 22 || acc.FinalInteger != 4 || acc.BitsReduced != 18 {
		t.Errorf("unexpected acc result %+v", acc)
	}
	if rec.PerVariable[1].FinalTotal != 34 {
		t.Errorf("expected coef at 34 after margin, got %d", rec.PerVariable[1].FinalTotal)
	}
	if len(rec.ErrorLog) != 1 || rec.ErrorLog[0].Kind != models.FailureBuild {
		t.Errorf("unexpected error log %+v", rec.ErrorLog)
	}
	if rec.Summary.Optimized != 1 || rec.Summary.Failed != 1 || rec.Summary.TotalBitsReduced != 16 {
		t.Errorf("unexpected summary %+v", rec.Summary)
	}
	if !rec.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, rec.Timestamp)
	}
}

func TestSerializeEmptyErrorLog(t *testing.T) {
	rec := Serialize(finishedRegistry(t), nil, Meta{})
	if rec.ErrorLog == nil {
		t.Error("expected an empty, non-nil error log")
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected timestamp to default to now")
	}
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	reg := finishedRegistry(t)
	scenario := models.Scenario{Size: 8, Complexity: 16, NoiseLevel: 25}
	paths := DefaultPaths(filepath.Join(dir, "out"), "MyComplex_optimized", scenario)

	if filepath.Base(paths.Record) != "bitwidth_config_8_8_16_SNR25.json" {
		t.Errorf("unexpected record name %s", paths.Record)
	}
	if filepath.Base(paths.Header) != "MyComplex_optimized_8_8_16_SNR25.h" {
		t.Errorf("unexpected header name %s", paths.Header)
	}

	rec := Serialize(reg, nil, Meta{CampaignID: "c-2", Scenario: scenario, Status: models.CampaignCompleted})
	if err := Write(paths, rec, Render(reg)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := ReadRecord(paths.Record)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	if got.CampaignID != "c-2" || len(got.PerVariable) != 2 || got.Status != models.CampaignCompleted {
		t.Errorf("unexpected record %+v", got)
	}

	data, err := os.ReadFile(paths.Header)
	if err != nil {
		t.Fatalf("failed to read header: %v", err)
	}
	if !strings.Contains(string(data), "typedef ap_fixed<22, 4> acc_t;") {
		t.Errorf("header does not carry the final width:\n%s", data)
	}

	// the header parses back to the same widths
	back, err := registry.Parse(paths.Header, data, registry.Options{})
	if err != nil {
		t.Fatalf("rendered header does not parse: %v", err)
	}
	w, _ := back.Width("coef")
	if w != (models.Width{Total: 34, Integer: 6}) {
		t.Errorf("expected coef W=34,I=6, got %s", w)
	}

	entries, _ := os.ReadDir(filepath.Dir(paths.Record))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "two" {
		t.Errorf("expected 'two', got %q", data)
	}
}

func TestReadRecordMissing(t *testing.T) {
	if _, err := ReadRecord(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for a missing record")
	}
}
