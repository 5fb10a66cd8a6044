package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

// Scheduler runs scan directories and job inboxes on their intervals and
// probes the repository while an outage is in effect.
type Scheduler interface {
	// Start begins the daemon loop.
	// Blocks until Stop is called or the context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully stops the loop and waits for running jobs.
	Stop() error

	// Trigger asks the loop to run a task on its next pass,
	// regardless of its schedule. Unknown IDs are ignored.
	Trigger(taskID string)

	// Status returns a snapshot of the daemon state.
	Status(ctx context.Context) (*DaemonStatus, error)
}

// DaemonStatus is a snapshot of the daemon state.
type DaemonStatus struct {
	// Running indicates the loop is active.
	Running bool

	// Paused indicates a repository outage is in effect.
	Paused bool

	// StartedAt is when the loop started.
	StartedAt time.Time

	// LastProbe is when connectivity was last checked.
	LastProbe time.Time

	// Tasks holds the schedule state of every scan directory and inbox.
	Tasks []domain.ScheduledTask
}
