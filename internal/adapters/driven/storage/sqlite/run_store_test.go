package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

var reportEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleReport(id string, offset time.Duration) *domain.JobReport {
	return &domain.JobReport{
		ID:     id,
		Name:   "nightly",
		Kind:   domain.WorkDownload,
		Source: "/jobs/nightly.json",
		Status: domain.JobPartialOutage,
		Summary: domain.BatchSummary{
			Successful:        3,
			Failed:            1,
			Skipped:           2,
			Total:             6,
			OutageInterrupted: true,
		},
		StartedAt: reportEpoch.Add(offset),
		EndedAt:   reportEpoch.Add(offset + 1500*time.Millisecond),
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	runs := store.RunStore()

	want := sampleReport("run-1", 0)
	require.NoError(t, runs.SaveReport(ctx, want))

	got, err := runs.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1500*time.Millisecond, got.Duration())
}

func TestRunStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.RunStore().GetReport(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunStore_SaveInvalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	runs := store.RunStore()

	assert.ErrorIs(t, runs.SaveReport(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, runs.SaveReport(context.Background(), &domain.JobReport{}), domain.ErrInvalidInput)
}

func TestRunStore_SaveReplaces(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	runs := store.RunStore()

	report := sampleReport("run-1", 0)
	require.NoError(t, runs.SaveReport(ctx, report))
	report.Status = domain.JobSuccess
	report.Message = "rerun"
	require.NoError(t, runs.SaveReport(ctx, report))

	got, err := runs.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobSuccess, got.Status)
	assert.Equal(t, "rerun", got.Message)
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	runs := store.RunStore()

	require.NoError(t, runs.SaveReport(ctx, sampleReport("b", time.Minute)))
	require.NoError(t, runs.SaveReport(ctx, sampleReport("a", 0)))
	require.NoError(t, runs.SaveReport(ctx, sampleReport("c", 2*time.Minute)))

	reports, err := runs.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "c", reports[0].ID)
	assert.Equal(t, "b", reports[1].ID)

	none, err := runs.ListReports(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRunStore_Prune(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	runs := store.RunStore()

	for i, id := range []string{"r0", "r1", "r2", "r3"} {
		require.NoError(t, runs.SaveReport(ctx, sampleReport(id, time.Duration(i)*time.Minute)))
	}

	require.NoError(t, runs.PruneReports(ctx, 2))

	reports, err := runs.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "r3", reports[0].ID)
	assert.Equal(t, "r2", reports[1].ID)
}
