package services

import (
	"context"
	"errors"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
)

// defaultHistoryLimit is used when no positive limit is requested.
const defaultHistoryLimit = 20

// Ensure HistoryService implements the interface.
var _ driving.HistoryService = (*HistoryService)(nil)

// HistoryService reads job reports from the run store.
type HistoryService struct {
	runs driven.RunStore
}

// NewHistoryService creates a history service.
func NewHistoryService(runs driven.RunStore) *HistoryService {
	return &HistoryService{runs: runs}
}

// Recent returns the most recent reports, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]domain.JobReport, error) {
	if s.runs == nil {
		return nil, errors.New("run store not configured")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.runs.ListReports(ctx, limit)
}

// Get returns a single report by run ID.
func (s *HistoryService) Get(ctx context.Context, id string) (*domain.JobReport, error) {
	if s.runs == nil {
		return nil, errors.New("run store not configured")
	}
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.runs.GetReport(ctx, id)
}
