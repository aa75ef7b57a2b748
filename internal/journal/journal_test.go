package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/utils"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db")),
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Init(ctx); err != nil {
				t.Fatalf("Init failed: %v", err)
			}
			defer store.Close()

			id := utils.NewCampaignID()
			scenario := models.Scenario{Size: 8, Complexity: 16, NoiseLevel: 25}
			if err := store.CreateCampaign(ctx, Campaign{ID: id, Scenario: scenario, StartedAt: time.Now()}); err != nil {
				t.Fatalf("CreateCampaign failed: %v", err)
			}

			metric := 0.004
			attempts := []models.Attempt{
				{Variable: "acc", Phase: models.PhaseFractional, Stage: models.StageCoarse,
					Candidate: models.Width{Total: 36, Integer: 8}, Outcome: models.OutcomeAccepted,
					Metric: &metric, Duration: 3 * time.Second, At: time.Now()},
				{Variable: "acc", Phase: models.PhaseFractional, Stage: models.StageCoarse,
					Candidate: models.Width{Total: 32, Integer: 8}, Outcome: models.OutcomeFailed,
					FailureKind: models.FailureBuild, Duration: time.Second, At: time.Now()},
			}
			for _, a := range attempts {
				if err := store.RecordAttempt(ctx, id, a); err != nil {
					t.Fatalf("RecordAttempt failed: %v", err)
				}
			}
			entry := models.ErrorEntry{Context: "acc fractional/coarse W=32,I=8", Kind: models.FailureBuild, Diagnostic: "error: bad", At: time.Now()}
			if err := store.RecordError(ctx, id, entry); err != nil {
				t.Fatalf("RecordError failed: %v", err)
			}
			if err := store.FinishCampaign(ctx, id, models.CampaignCompleted, 0.001); err != nil {
				t.Fatalf("FinishCampaign failed: %v", err)
			}

			got, err := store.Attempts(ctx, id)
			if err != nil {
				t.Fatalf("Attempts failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 attempts, got %d", len(got))
			}
			if got[0].Metric == nil || *got[0].Metric != metric {
				t.Errorf("expected metric %v on first attempt, got %v", metric, got[0].Metric)
			}
			if got[1].Metric != nil || got[1].FailureKind != models.FailureBuild {
				t.Errorf("unexpected second attempt %+v", got[1])
			}
			if got[0].Candidate != (models.Width{Total: 36, Integer: 8}) || got[0].Duration != 3*time.Second {
				t.Errorf("unexpected first attempt %+v", got[0])
			}

			errs, err := store.Errors(ctx, id)
			if err != nil {
				t.Fatalf("Errors failed: %v", err)
			}
			if len(errs) != 1 || errs[0].Context != entry.Context || errs[0].Kind != models.FailureBuild {
				t.Errorf("unexpected errors %+v", errs)
			}

			c, err := store.Campaign(ctx, id)
			if err != nil {
				t.Fatalf("Campaign failed: %v", err)
			}
			if c.Status != models.CampaignCompleted || c.BaselineMetric != 0.001 || c.Scenario != scenario {
				t.Errorf("unexpected campaign %+v", c)
			}
			if c.FinishedAt.IsZero() {
				t.Error("expected finished_at to be set")
			}
		})
	}
}

func TestStoreUnknownCampaign(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Init(ctx); err != nil {
				t.Fatalf("Init failed: %v", err)
			}
			defer store.Close()

			if _, err := store.Attempts(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Attempts: expected ErrNotFound, got %v", err)
			}
			if _, err := store.Errors(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Errors: expected ErrNotFound, got %v", err)
			}
			if _, err := store.Campaign(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Campaign: expected ErrNotFound, got %v", err)
			}
			if err := store.RecordAttempt(ctx, "missing", models.Attempt{}); !errors.Is(err, ErrNotFound) {
				t.Errorf("RecordAttempt: expected ErrNotFound, got %v", err)
			}
			if err := store.FinishCampaign(ctx, "missing", models.CampaignFailed, 0); !errors.Is(err, ErrNotFound) {
				t.Errorf("FinishCampaign: expected ErrNotFound, got %v", err)
			}
			if err := store.CreateCampaign(ctx, Campaign{}); err == nil {
				t.Error("expected error for an empty campaign id")
			}
		})
	}
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := first.CreateCampaign(ctx, Campaign{ID: "c-1"}); err != nil {
		t.Fatalf("CreateCampaign failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	c, err := second.Campaign(ctx, "c-1")
	if err != nil {
		t.Fatalf("Campaign failed after reopen: %v", err)
	}
	if c.Status != models.CampaignRunning {
		t.Errorf("expected running, got %s", c.Status)
	}
}

func TestSQLiteRequiresInit(t *testing.T) {
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "j.db"))
	if err := s.CreateCampaign(context.Background(), Campaign{ID: "x"}); err == nil {
		t.Fatal("expected error before Init")
	}
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected error for an empty path")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{"sqlite", false},
		{"postgres", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			s, err := New(tt.backend, filepath.Join(t.TempDir(), "j.db"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}
