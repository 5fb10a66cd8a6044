package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu      sync.RWMutex
	reports map[string]storedReport
	seq     int
}

// storedReport keeps insertion order to break ties between equal start times.
type storedReport struct {
	report domain.JobReport
	seq    int
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		reports: make(map[string]storedReport),
	}
}

// SaveReport stores or replaces a report.
func (s *RunStore) SaveReport(_ context.Context, report *domain.JobReport) error {
	if report == nil || report.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq
	if existing, ok := s.reports[report.ID]; ok {
		seq = existing.seq
	} else {
		s.seq++
	}
	s.reports[report.ID] = storedReport{report: *report, seq: seq}
	return nil
}

// GetReport retrieves a report by run ID.
func (s *RunStore) GetReport(_ context.Context, id string) (*domain.JobReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("job run %s: %w", id, domain.ErrNotFound)
	}
	report := stored.report
	return &report, nil
}

// ListReports returns the most recent reports, newest first.
func (s *RunStore) ListReports(_ context.Context, limit int) ([]domain.JobReport, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.newestFirst()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	reports := make([]domain.JobReport, 0, len(sorted))
	for _, stored := range sorted {
		reports = append(reports, stored.report)
	}
	return reports, nil
}

// PruneReports keeps only the most recent 'keep' reports.
func (s *RunStore) PruneReports(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	sorted := s.newestFirst()
	for i := keep; i < len(sorted); i++ {
		delete(s.reports, sorted[i].report.ID)
	}
	return nil
}

// newestFirst must be called with the lock held.
func (s *RunStore) newestFirst() []storedReport {
	sorted := make([]storedReport, 0, len(s.reports))
	for _, stored := range s.reports {
		sorted = append(sorted, stored)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.report.StartedAt.Equal(b.report.StartedAt) {
			return a.report.StartedAt.After(b.report.StartedAt)
		}
		return a.seq > b.seq
	})
	return sorted
}
