package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
)

type mockScheduler struct {
	status *driving.DaemonStatus
	err    error
}

func (m *mockScheduler) Start(context.Context) error { return nil }
func (m *mockScheduler) Stop() error                 { return nil }
func (m *mockScheduler) Trigger(string)              {}

func (m *mockScheduler) Status(context.Context) (*driving.DaemonStatus, error) {
	return m.status, m.err
}

type mockHistory struct {
	reports   []domain.JobReport
	err       error
	lastLimit int
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]domain.JobReport, error) {
	m.lastLimit = limit
	return m.reports, m.err
}

func (m *mockHistory) Get(_ context.Context, id string) (*domain.JobReport, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	for i := range m.reports {
		if m.reports[i].ID == id {
			return &m.reports[i], nil
		}
	}
	return nil, fmt.Errorf("report %s: %w", id, domain.ErrNotFound)
}

func sampleStatus() *driving.DaemonStatus {
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &driving.DaemonStatus{
		Running:   true,
		StartedAt: started,
		LastProbe: started,
		Tasks: []domain.ScheduledTask{{
			ID:       domain.ScanTaskID("/data/in"),
			Name:     "Scan /data/in",
			Interval: time.Minute,
			Enabled:  true,
			LastRun:  started,
		}},
	}
}

func sampleReports() []domain.JobReport {
	return []domain.JobReport{{
		ID:      "run-1",
		Name:    "/data/in",
		Kind:    domain.WorkUpload,
		Source:  "/data/in",
		Status:  domain.JobCompletedWithIssues,
		Summary: domain.BatchSummary{Successful: 3, Failed: 1, Total: 4},
	}}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	srv := NewServer("", &mockScheduler{status: sampleStatus()}, nil)

	rec := get(t, srv.Handler(), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Running)
	assert.False(t, body.Paused)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, "scan:/data/in", body.Tasks[0].ID)
	assert.Equal(t, "1m0s", body.Tasks[0].Interval)
	assert.NotNil(t, body.Tasks[0].LastRun)
	assert.Nil(t, body.Tasks[0].NextRun)
}

func TestHandleStatus_Error(t *testing.T) {
	srv := NewServer("", &mockScheduler{err: errors.New("db locked")}, nil)

	rec := get(t, srv.Handler(), "/api/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db locked")
}

func TestHandleHistory(t *testing.T) {
	history := &mockHistory{reports: sampleReports()}
	srv := NewServer("", &mockScheduler{status: sampleStatus()}, history)

	t.Run("default limit", func(t *testing.T) {
		rec := get(t, srv.Handler(), "/api/history")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, defaultHistoryLimit, history.lastLimit)

		var body []reportResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "run-1", body[0].ID)
		assert.Equal(t, "completed_with_issues", body[0].Status)
		assert.Equal(t, 3, body[0].Successful)
		assert.Equal(t, 1, body[0].Failed)
	})

	t.Run("explicit limit is capped", func(t *testing.T) {
		rec := get(t, srv.Handler(), "/api/history?limit=5000")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxHistoryLimit, history.lastLimit)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := get(t, srv.Handler(), "/api/history?limit=abc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleHistory_NoStore(t *testing.T) {
	srv := NewServer("", &mockScheduler{status: sampleStatus()}, nil)

	rec := get(t, srv.Handler(), "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleReport(t *testing.T) {
	srv := NewServer("", &mockScheduler{status: sampleStatus()}, &mockHistory{reports: sampleReports()})

	rec := get(t, srv.Handler(), "/api/history/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	var body reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upload", body.Kind)

	rec = get(t, srv.Handler(), "/api/history/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIndex(t *testing.T) {
	status := sampleStatus()
	status.Paused = true
	srv := NewServer("", &mockScheduler{status: status}, &mockHistory{reports: sampleReports()})

	rec := get(t, srv.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Paused")
	assert.Contains(t, body, "Scan /data/in")
	assert.Contains(t, body, "completed_with_issues")
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", &mockScheduler{status: sampleStatus()}, nil)
	require.NoError(t, srv.Start())
	require.NoError(t, srv.Start(), "second start is a no-op")

	resp, err := http.Get("http://" + srv.Addr() + "/api/status")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
}

func TestServer_StartAddressInUse(t *testing.T) {
	first := NewServer("127.0.0.1:0", &mockScheduler{status: sampleStatus()}, nil)
	require.NoError(t, first.Start())
	defer func() { _ = first.Stop() }()

	second := NewServer(first.Addr(), &mockScheduler{status: sampleStatus()}, nil)
	assert.Error(t, second.Start())
}
