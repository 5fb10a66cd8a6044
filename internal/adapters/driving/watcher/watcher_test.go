package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingTrigger) Trigger(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, taskID)
}

func (r *recordingTrigger) triggered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func (r *recordingTrigger) count(id string) int {
	n := 0
	for _, got := range r.triggered() {
		if got == id {
			n++
		}
	}
	return n
}

func watchConfig(scanDir string, recursive bool, inbox string) domain.Config {
	cfg := domain.DefaultConfig()
	cfg.ScanDirectories = []domain.ScanDirectory{{
		Path:      scanDir,
		ItemType:  "Invoice",
		Recursive: recursive,
		Enabled:   true,
		Watch:     true,
	}}
	cfg.Jobs.DownloadDir = inbox
	return cfg
}

func newTestWatcher(t *testing.T, cfg domain.Config) (*Watcher, *recordingTrigger) {
	t.Helper()
	trigger := &recordingTrigger{}
	w, err := New(cfg, trigger, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, trigger
}

func TestNew_NilTrigger(t *testing.T) {
	_, err := New(domain.DefaultConfig(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew_WatchesConfiguredDirectories(t *testing.T) {
	scanDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(scanDir, "sub"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(scanDir, ".cache"), 0755))
	inbox := filepath.Join(t.TempDir(), "jobs", "download")

	w, _ := newTestWatcher(t, watchConfig(scanDir, true, inbox))

	assert.ElementsMatch(t, []string{
		scanDir,
		filepath.Join(scanDir, "sub"),
		inbox,
	}, w.Dirs())
	assert.DirExists(t, inbox, "missing inbox is created")
}

func TestNew_SkipsUnwatchedAndMissing(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.ScanDirectories = []domain.ScanDirectory{
		{Path: t.TempDir(), ItemType: "A", Enabled: true, Watch: false},
		{Path: t.TempDir(), ItemType: "B", Enabled: false, Watch: true},
		{Path: filepath.Join(t.TempDir(), "missing"), ItemType: "C", Enabled: true, Watch: true},
	}

	w, _ := newTestWatcher(t, cfg)
	assert.Empty(t, w.Dirs())
}

func TestHandleEvent(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		dir      bool
		inbox    bool
		op       fsnotify.Op
		expected bool
	}{
		{name: "create file", file: "scan.pdf", op: fsnotify.Create, expected: true},
		{name: "write file", file: "scan.pdf", op: fsnotify.Write, expected: true},
		{name: "chmod ignored", file: "scan.pdf", op: fsnotify.Chmod},
		{name: "remove ignored", file: "scan.pdf", op: fsnotify.Remove},
		{name: "hidden file skipped", file: ".scan.pdf", op: fsnotify.Create},
		{name: "office lock file skipped", file: "~$report.docx", op: fsnotify.Create},
		{name: "directory skipped", file: "nested", dir: true, op: fsnotify.Create},
		{name: "inbox json", file: "job.json", inbox: true, op: fsnotify.Create, expected: true},
		{name: "inbox non-json skipped", file: "notes.txt", inbox: true, op: fsnotify.Create},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanDir := t.TempDir()
			inbox := t.TempDir()
			w, _ := newTestWatcher(t, watchConfig(scanDir, false, inbox))

			parent := scanDir
			if tt.inbox {
				parent = inbox
			}
			path := filepath.Join(parent, tt.file)
			if tt.dir {
				require.NoError(t, os.Mkdir(path, 0755))
			} else if tt.op != fsnotify.Remove {
				require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
			}

			got := w.handleEvent(fsnotify.Event{Name: path, Op: tt.op})
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestHandleEvent_UnknownDirectory(t *testing.T) {
	w, _ := newTestWatcher(t, watchConfig(t.TempDir(), false, ""))

	path := filepath.Join(t.TempDir(), "other.pdf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	assert.False(t, w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Create}))
}

func TestHandleEvent_RecursiveAddsNewDirectory(t *testing.T) {
	scanDir := t.TempDir()
	w, _ := newTestWatcher(t, watchConfig(scanDir, true, ""))

	sub := filepath.Join(scanDir, "2024")
	require.NoError(t, os.Mkdir(sub, 0755))
	assert.False(t, w.handleEvent(fsnotify.Event{Name: sub, Op: fsnotify.Create}))
	assert.Contains(t, w.Dirs(), sub)

	file := filepath.Join(sub, "a.pdf")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.True(t, w.handleEvent(fsnotify.Event{Name: file, Op: fsnotify.Create}))
}

func TestSchedule_Debounces(t *testing.T) {
	scanDir := t.TempDir()
	w, trigger := newTestWatcher(t, watchConfig(scanDir, false, ""))
	id := domain.ScanTaskID(scanDir)

	for i := 0; i < 5; i++ {
		w.schedule(id)
	}

	assert.Eventually(t, func() bool { return trigger.count(id) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, trigger.count(id))
}

func TestClose_CancelsPendingTriggers(t *testing.T) {
	scanDir := t.TempDir()
	trigger := &recordingTrigger{}
	w, err := New(watchConfig(scanDir, false, ""), trigger, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)

	w.schedule(domain.ScanTaskID(scanDir))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, trigger.triggered())

	w.schedule(domain.ScanTaskID(scanDir))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, trigger.triggered(), "closed watcher does not schedule")
}

func TestRun_TriggersOnNewFile(t *testing.T) {
	scanDir := t.TempDir()
	inbox := t.TempDir()
	w, trigger := newTestWatcher(t, watchConfig(scanDir, false, inbox))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(scanDir, "invoice.pdf"), []byte("pdf"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "job.json"), []byte("{}"), 0644))

	assert.Eventually(t, func() bool {
		return trigger.count(domain.ScanTaskID(scanDir)) >= 1 &&
			trigger.count(domain.TaskIDDownloadInbox) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
