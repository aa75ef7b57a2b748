package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/bitwidth-core/pkg/models"
)

type memoryCampaign struct {
	info     Campaign
	attempts []models.Attempt
	errors   []models.ErrorEntry
}

// MemoryStore keeps the journal in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]*memoryCampaign
}

// NewMemoryStore creates an empty in-memory journal
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{campaigns: make(map[string]*memoryCampaign)}
}

func (s *MemoryStore) Init(context.Context) error { return nil }

func (s *MemoryStore) CreateCampaign(_ context.Context, c Campaign) error {
	if c.ID == "" {
		return fmt.Errorf("campaign id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	if c.Status == "" {
		c.Status = models.CampaignRunning
	}
	s.campaigns[c.ID] = &memoryCampaign{info: c}
	return nil
}

func (s *MemoryStore) RecordAttempt(_ context.Context, campaignID string, a models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	c.attempts = append(c.attempts, a)
	return nil
}

func (s *MemoryStore) RecordError(_ context.Context, campaignID string, e models.ErrorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	c.errors = append(c.errors, e)
	return nil
}

func (s *MemoryStore) FinishCampaign(_ context.Context, campaignID string, status models.CampaignStatus, baseline float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	c.info.Status = status
	c.info.BaselineMetric = baseline
	c.info.FinishedAt = time.Now()
	return nil
}

func (s *MemoryStore) Campaign(_ context.Context, campaignID string) (Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return Campaign{}, fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	return c.info, nil
}

func (s *MemoryStore) Attempts(_ context.Context, campaignID string) ([]models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	out := make([]models.Attempt, len(c.attempts))
	copy(out, c.attempts)
	return out, nil
}

func (s *MemoryStore) Errors(_ context.Context, campaignID string) ([]models.ErrorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, campaignID)
	}
	out := make([]models.ErrorEntry, len(c.errors))
	copy(out, c.errors)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
