// Package journal records every campaign, oracle attempt and error so a long
// campaign can be inspected while it runs and after it ends.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

// ErrNotFound is returned for unknown campaign IDs
var ErrNotFound = errors.New("campaign not found")

// Campaign is the journal row of one campaign
type Campaign struct {
	ID             string                `json:"id"`
	Scenario       models.Scenario       `json:"scenario"`
	BaselineMetric float64               `json:"baseline_metric"`
	Status         models.CampaignStatus `json:"status"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at,omitzero"`
}

// Store persists campaign progress
type Store interface {
	Init(ctx context.Context) error
	CreateCampaign(ctx context.Context, c Campaign) error
	RecordAttempt(ctx context.Context, campaignID string, a models.Attempt) error
	RecordError(ctx context.Context, campaignID string, e models.ErrorEntry) error
	FinishCampaign(ctx context.Context, campaignID string, status models.CampaignStatus, baseline float64) error
	Campaign(ctx context.Context, campaignID string) (Campaign, error)
	Attempts(ctx context.Context, campaignID string) ([]models.Attempt, error)
	Errors(ctx context.Context, campaignID string) ([]models.ErrorEntry, error)
	Close() error
}

// New creates a store for the configured backend
func New(backend, path string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported journal backend: %s", backend)
	}
}
