package domain

import (
	"strings"
	"time"
)

// ScheduledTask is the persisted schedule state of one scan directory
// or job inbox.
type ScheduledTask struct {
	// ID is the unique identifier for the task. See ScanTaskID.
	ID string

	// Name is a human-readable name for the task.
	Name string

	// Interval defines how often the task should run.
	// Zero means the task runs once and is then disabled.
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed without issues.
	LastSuccess time.Time

	// Enabled indicates whether the task is active.
	Enabled bool
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	return t.NextRun.IsZero() || !t.NextRun.After(now)
}

// TaskResult represents the outcome of one task execution.
type TaskResult struct {
	// TaskID identifies which task was run.
	TaskID string

	// StartedAt is when the task started.
	StartedAt time.Time

	// EndedAt is when the task completed.
	EndedAt time.Time

	// Success indicates whether the run finished with JobSuccess.
	Success bool

	// Error contains the job status or error message if Success is false.
	Error string

	// ItemsProcessed is the number of work items classified.
	ItemsProcessed int
}

// Task IDs for scan directories and job inboxes.
const (
	TaskPrefixScan      = "scan:"
	TaskIDDownloadInbox = "inbox:download"
	TaskIDMetadataInbox = "inbox:metadata"
)

const (
	// DefaultHistoryRetention is the number of results kept per task.
	DefaultHistoryRetention = 100

	// DefaultInboxPollInterval is how often job inboxes are checked.
	DefaultInboxPollInterval = 30 * time.Second
)

// ScanTaskID returns the task ID of a scan directory.
func ScanTaskID(path string) string {
	return TaskPrefixScan + path
}

// ScanPath returns the directory of a scan task ID and whether the ID is a scan task.
func ScanPath(taskID string) (string, bool) {
	if !strings.HasPrefix(taskID, TaskPrefixScan) {
		return "", false
	}
	return strings.TrimPrefix(taskID, TaskPrefixScan), true
}
