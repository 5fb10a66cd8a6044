package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

func TestSchedulerStore_Tasks(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	missing, err := store.GetTask(ctx, "scan:/a")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: "scan:/b", Interval: time.Minute, Enabled: true}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: "scan:/a", Enabled: true}))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "scan:/a", tasks[0].ID)
	assert.Equal(t, "scan:/b", tasks[1].ID)

	task, err := store.GetTask(ctx, "scan:/b")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, time.Minute, task.Interval)

	task.Enabled = false
	require.NoError(t, store.SaveTask(ctx, task))
	task, err = store.GetTask(ctx, "scan:/b")
	require.NoError(t, err)
	assert.False(t, task.Enabled)
}

func TestSchedulerStore_SaveInvalid(t *testing.T) {
	store := NewSchedulerStore()
	assert.ErrorIs(t, store.SaveTask(context.Background(), &domain.ScheduledTask{}), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.RecordResult(context.Background(), &domain.TaskResult{}), domain.ErrInvalidInput)
}

func TestSchedulerStore_History(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID:         "scan:/a",
			StartedAt:      base.Add(time.Duration(i) * time.Minute),
			ItemsProcessed: i,
		}))
	}
	require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{TaskID: "scan:/b", StartedAt: base}))

	history, err := store.GetTaskHistory(ctx, "scan:/a", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 3, history[1].ItemsProcessed)

	require.NoError(t, store.PruneHistory(ctx, 3))
	history, err = store.GetTaskHistory(ctx, "scan:/a", 0)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	other, err := store.GetTaskHistory(ctx, "scan:/b", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSchedulerStore_DeleteTaskRemovesHistory(t *testing.T) {
	store := NewSchedulerStore()
	ctx := context.Background()

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: "inbox:download", Enabled: true}))
	require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{TaskID: "inbox:download"}))

	require.NoError(t, store.DeleteTask(ctx, "inbox:download"))

	task, err := store.GetTask(ctx, "inbox:download")
	require.NoError(t, err)
	assert.Nil(t, task)
	history, err := store.GetTaskHistory(ctx, "inbox:download", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
