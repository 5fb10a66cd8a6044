package driving

import (
	"context"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// JobRunner runs batches built from scan directories and job files.
//
// Methods never return an error: configuration problems are reported as
// a JobReport with status domain.JobErrorConfig and a zero summary.
type JobRunner interface {
	// ScanDirectory uploads every matching file in a directory.
	ScanDirectory(ctx context.Context, dir domain.ScanDirectory) *domain.JobReport

	// RunDownloadJob executes a download job file.
	RunDownloadJob(ctx context.Context, path string) *domain.JobReport

	// RunMetadataJob executes a metadata update job file.
	RunMetadataJob(ctx context.Context, path string) *domain.JobReport
}
