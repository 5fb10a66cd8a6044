package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeStatus_Classification(t *testing.T) {
	tests := []struct {
		status  OutcomeStatus
		success bool
		skipped bool
		failed  bool
	}{
		{OutcomeSuccess, true, false, false},
		{OutcomeSkippedNoIdentifier, false, true, false},
		{OutcomeSkippedInvalidPayload, false, true, false},
		{OutcomeSkippedAlreadyExists, false, true, false},
		{OutcomeFailedBackendRejected, false, false, true},
		{OutcomeFailedNoClient, false, false, true},
		{OutcomeFailedUnexpected, false, false, true},
		{OutcomeStatus("bogus"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.success, tt.status.IsSuccess())
			assert.Equal(t, tt.skipped, tt.status.IsSkipped())
			assert.Equal(t, tt.failed, tt.status.IsFailed())
		})
	}
}

func TestBatchSummary_Record(t *testing.T) {
	s := BatchSummary{Total: 5}

	s.Record(OutcomeSuccess)
	s.Record(OutcomeSuccess)
	s.Record(OutcomeSkippedAlreadyExists)
	s.Record(OutcomeFailedBackendRejected)

	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 4, s.Processed())
	assert.Equal(t, 1, s.Remaining())
}

func TestBatchSummary_RemainingNeverNegative(t *testing.T) {
	s := BatchSummary{Total: 1, Successful: 2}
	assert.Equal(t, 0, s.Remaining())
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		summary BatchSummary
		want    JobStatus
	}{
		{"all succeeded", BatchSummary{Successful: 3, Total: 3}, JobSuccess},
		{"empty batch", BatchSummary{}, JobSuccess},
		{"one failure", BatchSummary{Successful: 2, Failed: 1, Total: 3}, JobCompletedWithIssues},
		{"one skip", BatchSummary{Successful: 2, Skipped: 1, Total: 3}, JobCompletedWithIssues},
		{
			"outage with remainder",
			BatchSummary{Successful: 2, Failed: 1, Skipped: 2, Total: 5, OutageInterrupted: true},
			JobPartialOutage,
		},
		{
			"outage on last item",
			BatchSummary{Successful: 2, Failed: 1, Total: 3, OutageInterrupted: true},
			JobPartialOutage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.summary))
		})
	}
}

func TestJobStatus_IsSuccess(t *testing.T) {
	assert.True(t, JobSuccess.IsSuccess())
	assert.True(t, JobSuccessEmpty.IsSuccess())
	assert.False(t, JobCompletedWithIssues.IsSuccess())
	assert.False(t, JobPartialOutage.IsSuccess())
	assert.False(t, JobErrorConfig.IsSuccess())
}

func TestOutageFlag(t *testing.T) {
	var f OutageFlag
	assert.False(t, f.IsSet())

	assert.True(t, f.Set())
	assert.False(t, f.Set(), "second set reports already set")
	assert.True(t, f.IsSet())

	f.Clear()
	assert.False(t, f.IsSet())
}
