package driven

import (
	"context"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// RunStore persists job reports for the history view.
type RunStore interface {
	// SaveReport records a finished job.
	SaveReport(ctx context.Context, report *domain.JobReport) error

	// GetReport retrieves a report by run ID.
	// Returns domain.ErrNotFound if the run does not exist.
	GetReport(ctx context.Context, id string) (*domain.JobReport, error)

	// ListReports returns the most recent reports, newest first.
	ListReports(ctx context.Context, limit int) ([]domain.JobReport, error)

	// PruneReports keeps only the most recent 'keep' reports.
	PruneReports(ctx context.Context, keep int) error
}
