package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// historyRetention is the number of job reports kept.
const historyRetention = 500

// JobService builds batches from scan directories and job files and runs
// them through the batch runner.
type JobService struct {
	cfg       domain.Config
	runner    *BatchRunner
	uploads   ItemProcessor
	downloads ItemProcessor
	metadata  ItemProcessor
	runs      driven.RunStore
}

var _ driving.JobRunner = (*JobService)(nil)

// NewJobService creates a job service.
// client may be nil when no credentials are available; every item then
// fails with domain.OutcomeFailedNoClient. runs may be nil to disable history.
func NewJobService(
	cfg domain.Config,
	client driven.RepositoryClient,
	runner *BatchRunner,
	runs driven.RunStore,
) *JobService {
	if runner == nil {
		runner = NewBatchRunner(nil)
	}
	return &JobService{
		cfg:       cfg,
		runner:    runner,
		uploads:   NewUploadProcessor(client, NewArchiver(cfg.Download.FailedArchiveDirectory)),
		downloads: NewDownloadProcessor(client),
		metadata:  NewMetadataProcessor(client),
		runs:      runs,
	}
}

// downloadJob is the download job file format.
type downloadJob struct {
	JobName                string `json:"job_name"`
	DefaultTargetDirectory string `json:"default_target_directory"`
	Downloads              []struct {
		DocID          string `json:"doc_id"`
		TargetFilename string `json:"target_filename"`
	} `json:"downloads"`
}

// metadataJob is the metadata update job file format.
type metadataJob struct {
	JobName string `json:"job_name"`
	Updates []struct {
		DocID             string          `json:"doc_id"`
		ObjectID          string          `json:"object_id"`
		ObjectIDFieldName string          `json:"object_id_field_name"`
		ItemTypeContext   string          `json:"item_type_context"`
		Metadata          json.RawMessage `json:"metadata"`
	} `json:"updates"`
}

// RunDownloadJob executes a download job file.
func (s *JobService) RunDownloadJob(ctx context.Context, path string) *domain.JobReport {
	report := newReport(filepath.Base(path), domain.WorkDownload, path)
	logger.Section("Download job " + report.Name)

	var job downloadJob
	if err := readJobFile(path, &job); err != nil {
		return s.configError(ctx, report, err)
	}
	if job.JobName != "" {
		report.Name = job.JobName
	}

	targetDir := job.DefaultTargetDirectory
	if targetDir == "" {
		targetDir = s.cfg.Download.DefaultTargetDirectory
	}
	if targetDir == "" {
		return s.configError(ctx, report, fmt.Errorf("%w: no target directory in job or configuration", domain.ErrConfig))
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return s.configError(ctx, report, fmt.Errorf("%w: create target directory %s: %v", domain.ErrConfig, targetDir, err))
	}

	if len(job.Downloads) == 0 {
		return s.emptyJob(ctx, report)
	}

	items := make([]domain.WorkItem, 0, len(job.Downloads))
	for _, d := range job.Downloads {
		items = append(items, domain.NewDownloadItem(domain.DownloadRequest{
			DocumentID:     d.DocID,
			TargetFilename: d.TargetFilename,
			TargetDir:      targetDir,
		}))
	}

	summary := s.runner.Run(ctx, report.Name, items, s.cfg.Performance.MaxParallelDownloads, s.downloads)
	return s.finish(ctx, report, summary)
}

// RunMetadataJob executes a metadata update job file.
func (s *JobService) RunMetadataJob(ctx context.Context, path string) *domain.JobReport {
	report := newReport(filepath.Base(path), domain.WorkMetadata, path)
	logger.Section("Metadata job " + report.Name)

	var job metadataJob
	if err := readJobFile(path, &job); err != nil {
		return s.configError(ctx, report, err)
	}
	if job.JobName != "" {
		report.Name = job.JobName
	}
	if len(job.Updates) == 0 {
		return s.emptyJob(ctx, report)
	}

	items := make([]domain.WorkItem, 0, len(job.Updates))
	for i, u := range job.Updates {
		var metadata map[string]any
		if len(u.Metadata) > 0 {
			if err := json.Unmarshal(u.Metadata, &metadata); err != nil {
				logger.Warn("job %s: update %d has invalid metadata: %v", report.Name, i, err)
				metadata = nil
			}
		}
		items = append(items, domain.NewMetadataItem(domain.MetadataUpdate{
			DocumentID:    u.DocID,
			ObjectID:      u.ObjectID,
			ObjectIDField: u.ObjectIDFieldName,
			ItemType:      u.ItemTypeContext,
			Metadata:      metadata,
		}))
	}

	summary := s.runner.Run(ctx, report.Name, items, s.cfg.Performance.MaxParallelMetadataUpdates, s.metadata)
	return s.finish(ctx, report, summary)
}

// readJobFile decodes a JSON job file.
func readJobFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read job file: %v", domain.ErrConfig, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: parse job file %s: %v", domain.ErrConfig, filepath.Base(path), err)
	}
	return nil
}

func newReport(name string, kind domain.WorkKind, source string) *domain.JobReport {
	return &domain.JobReport{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		Source:    source,
		StartedAt: time.Now(),
	}
}

// configError completes a report for a batch that never started.
func (s *JobService) configError(ctx context.Context, report *domain.JobReport, err error) *domain.JobReport {
	logger.Error("job %s: %v", report.Name, err)
	report.Status = domain.JobErrorConfig
	report.Summary = domain.BatchSummary{}
	report.Message = err.Error()
	return s.record(ctx, report)
}

func (s *JobService) emptyJob(ctx context.Context, report *domain.JobReport) *domain.JobReport {
	logger.Info("job %s: no items listed", report.Name)
	report.Status = domain.JobSuccessEmpty
	return s.record(ctx, report)
}

func (s *JobService) finish(ctx context.Context, report *domain.JobReport, summary domain.BatchSummary) *domain.JobReport {
	report.Summary = summary
	report.Status = domain.Aggregate(summary)
	logger.Info("job %s finished with status %s", report.Name, report.Status)
	return s.record(ctx, report)
}

// record stamps the end time and saves the report to history.
func (s *JobService) record(ctx context.Context, report *domain.JobReport) *domain.JobReport {
	report.EndedAt = time.Now()
	if s.runs == nil {
		return report
	}
	// History is best effort and must survive a cancelled batch context.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.runs.SaveReport(saveCtx, report); err != nil {
		logger.Warn("save report for job %s: %v", report.Name, err)
	}
	if err := s.runs.PruneReports(saveCtx, historyRetention); err != nil {
		logger.Warn("prune job history: %v", err)
	}
	return report
}
