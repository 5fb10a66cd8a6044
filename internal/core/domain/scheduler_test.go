package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduledTask_Due(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		task ScheduledTask
		want bool
	}{
		{"disabled", ScheduledTask{Enabled: false}, false},
		{"never run", ScheduledTask{Enabled: true}, true},
		{"next run in past", ScheduledTask{Enabled: true, NextRun: now.Add(-time.Second)}, true},
		{"next run now", ScheduledTask{Enabled: true, NextRun: now}, true},
		{"next run in future", ScheduledTask{Enabled: true, NextRun: now.Add(time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestScanTaskID_RoundTrip(t *testing.T) {
	id := ScanTaskID("/data/inbox")
	assert.Equal(t, "scan:/data/inbox", id)

	path, ok := ScanPath(id)
	assert.True(t, ok)
	assert.Equal(t, "/data/inbox", path)

	_, ok = ScanPath(TaskIDDownloadInbox)
	assert.False(t, ok)
}
