package driving

import (
	"context"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// HistoryService reads past job reports.
type HistoryService interface {
	// Recent returns the most recent reports, newest first.
	Recent(ctx context.Context, limit int) ([]domain.JobReport, error)

	// Get returns a single report by run ID.
	Get(ctx context.Context, id string) (*domain.JobReport, error)
}
