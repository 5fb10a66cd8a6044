package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

func TestRunCmd_StopsOnCancel(t *testing.T) {
	sched := newMockScheduler()
	cfg := domain.DefaultConfig()
	cfg.Jobs.DownloadDir = t.TempDir()
	setupServices(t, &Services{Config: cfg, Scheduler: sched})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out, err := executeContext(t, ctx, "", "run")

	require.NoError(t, err)
	assert.True(t, sched.wasStopped())
	assert.Contains(t, out, "cmsync daemon running.")
	assert.Contains(t, out, "cmsync daemon stopped.")
}

func TestRunCmd_ServesStatusPage(t *testing.T) {
	sched := newMockScheduler()
	cfg := domain.DefaultConfig()
	cfg.Web.Enabled = true
	cfg.Web.ListenAddress = "127.0.0.1:0"
	setupServices(t, &Services{Config: cfg, Scheduler: sched})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out, err := executeContext(t, ctx, "", "run", "--no-watch")

	require.NoError(t, err)
	assert.Contains(t, out, "Status page: http://127.0.0.1:")
}

func TestRunCmd_SchedulerError(t *testing.T) {
	sched := newMockScheduler()
	sched.startErr = errors.New("store unavailable")
	setupServices(t, &Services{Config: domain.DefaultConfig(), Scheduler: sched})

	_, err := executeContext(t, context.Background(), "", "run", "--no-watch", "--no-web")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.True(t, sched.wasStopped())
}
