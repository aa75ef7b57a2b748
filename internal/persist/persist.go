// Package persist writes the outcome of a campaign: the structured record and
// the rendered source artifact with the final widths.
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/internal/aggregate"
	"github.com/GoSim-25-26J-441/bitwidth-core/internal/registry"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// Meta carries the campaign parameters recorded next to the per-variable results
type Meta struct {
	CampaignID  string
	Scenario    models.Scenario
	Baseline    float64
	Threshold   float64
	Acceptance  string
	Order       string
	ContextMode string
	IntegerMode string
	Margin      int
	OracleCalls int
	Status      models.CampaignStatus
	Timestamp   time.Time
}

// Paths are the output file locations
type Paths struct {
	Record string
	Header string
}

// DefaultPaths derives the output file names from the scenario label
func DefaultPaths(dir, headerPrefix string, s models.Scenario) Paths {
	label := s.Label()
	return Paths{
		Record: filepath.Join(dir, fmt.Sprintf("bitwidth_config_%s.json", label)),
		Header: filepath.Join(dir, fmt.Sprintf("%s_%s.h", headerPrefix, label)),
	}
}

// Serialize builds the persisted record from the registry's final widths
func Serialize(reg *registry.Registry, errorLog []models.ErrorEntry, meta Meta) models.Record {
	results := reg.Results()
	if errorLog == nil {
		errorLog = []models.ErrorEntry{}
	}
	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return models.Record{
		CampaignID:     meta.CampaignID,
		Scenario:       meta.Scenario,
		BaselineMetric: meta.Baseline,
		Threshold:      meta.Threshold,
		Acceptance:     meta.Acceptance,
		Order:          meta.Order,
		ContextMode:    meta.ContextMode,
		IntegerMode:    meta.IntegerMode,
		Margin:         meta.Margin,
		OracleCalls:    meta.OracleCalls,
		PerVariable:    results,
		ErrorLog:       errorLog,
		Summary:        aggregate.Summarize(results),
		Status:         meta.Status,
		Timestamp:      ts,
	}
}

// Render returns the source artifact for the registry's final widths
func Render(reg *registry.Registry) []byte {
	return reg.Render()
}

// Write stores the record and the rendered header
func Write(paths Paths, rec models.Record, header []byte) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := WriteFileAtomic(paths.Record, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := WriteFileAtomic(paths.Header, header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// ReadRecord loads a record written by Write
func ReadRecord(path string) (models.Record, error) {
	var rec models.Record
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode record %s: %w", path, err)
	}
	return rec, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
