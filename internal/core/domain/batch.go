package domain

import "time"

// JobStatus is the overall classification of a batch or job.
type JobStatus string

// Job statuses.
const (
	// JobSuccess means every item succeeded.
	JobSuccess JobStatus = "success"

	// JobSuccessEmpty means a job file listed no items.
	JobSuccessEmpty JobStatus = "success_empty_job"

	// JobCompletedWithIssues means the batch ran to completion
	// but at least one item was skipped or failed.
	JobCompletedWithIssues JobStatus = "completed_with_issues"

	// JobPartialOutage means a repository outage interrupted the batch.
	JobPartialOutage JobStatus = "partial_error_outage_interrupted"

	// JobErrorConfig means the batch never started because its
	// descriptor or target was unusable.
	JobErrorConfig JobStatus = "error_config"
)

// IsSuccess reports whether the status is a success variant.
func (s JobStatus) IsSuccess() bool {
	return s == JobSuccess || s == JobSuccessEmpty
}

// BatchSummary is the running tally of a batch.
// At the end of a batch Successful+Failed+Skipped equals Total.
type BatchSummary struct {
	Successful int
	Failed     int
	Skipped    int
	Total      int

	// OutageInterrupted is set when a connection outage halted the batch.
	OutageInterrupted bool
}

// Processed returns the number of items already classified.
func (s *BatchSummary) Processed() int {
	return s.Successful + s.Failed + s.Skipped
}

// Remaining returns the number of listed items not yet classified.
func (s *BatchSummary) Remaining() int {
	if r := s.Total - s.Processed(); r > 0 {
		return r
	}
	return 0
}

// Record tallies one outcome.
func (s *BatchSummary) Record(status OutcomeStatus) {
	switch {
	case status.IsSuccess():
		s.Successful++
	case status.IsSkipped():
		s.Skipped++
	default:
		s.Failed++
	}
}

// Aggregate classifies a finished batch.
//
// An outage always yields JobPartialOutage regardless of how many items
// completed. Otherwise any failure or skip yields JobCompletedWithIssues.
func Aggregate(s BatchSummary) JobStatus {
	switch {
	case s.OutageInterrupted:
		return JobPartialOutage
	case s.Failed > 0 || s.Skipped > 0:
		return JobCompletedWithIssues
	default:
		return JobSuccess
	}
}

// JobReport is the aggregate result of one scan or job file.
type JobReport struct {
	// ID uniquely identifies the run.
	ID string

	// Name is the job name or scanned directory.
	Name string

	// Kind is the work kind of the batch.
	Kind WorkKind

	// Source is the job file or directory the batch was built from.
	Source string

	Status  JobStatus
	Summary BatchSummary

	// Message explains configuration errors.
	Message string

	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns how long the job ran.
func (r *JobReport) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
