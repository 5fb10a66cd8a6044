// Package watcher triggers scheduler tasks from filesystem events.
//
// Scan directories configured with watch = true and the job inbox
// directories are watched with fsnotify. Bursts of events for the same
// task are debounced into a single trigger.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// DefaultDebounce is the quiet period after the last event before a task
// is triggered.
const DefaultDebounce = 500 * time.Millisecond

// Trigger receives task IDs to run. services.Scheduler satisfies it.
type Trigger interface {
	Trigger(taskID string)
}

// target is a watched directory tree and the task it triggers.
type target struct {
	taskID    string
	recursive bool
	jobsOnly  bool
}

// Watcher maps filesystem events to scheduler triggers.
type Watcher struct {
	fs       *fsnotify.Watcher
	trigger  Trigger
	debounce time.Duration

	mu     sync.Mutex
	dirs   map[string]target
	timers map[string]*time.Timer
	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the debounce period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for every watched scan directory and job inbox
// in cfg. Missing scan directories are skipped with a warning; missing
// inbox directories are created.
func New(cfg domain.Config, trigger Trigger, opts ...Option) (*Watcher, error) {
	if trigger == nil {
		return nil, fmt.Errorf("%w: watcher needs a trigger", domain.ErrInvalidInput)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fw,
		trigger:  trigger,
		debounce: DefaultDebounce,
		dirs:     make(map[string]target),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, dir := range cfg.ScanDirectories {
		if !dir.Enabled || !dir.Watch {
			continue
		}
		t := target{taskID: domain.ScanTaskID(dir.Path), recursive: dir.Recursive}
		if err := w.addTree(dir.Path, t); err != nil {
			logger.Warn("watcher: not watching %s: %v", dir.Path, err)
		}
	}

	inboxes := []struct {
		dir    string
		taskID string
	}{
		{cfg.Jobs.DownloadDir, domain.TaskIDDownloadInbox},
		{cfg.Jobs.MetadataDir, domain.TaskIDMetadataInbox},
	}
	for _, inbox := range inboxes {
		if inbox.dir == "" {
			continue
		}
		if err := os.MkdirAll(inbox.dir, 0755); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("ensure inbox %s: %w", inbox.dir, err)
		}
		if err := w.add(inbox.dir, target{taskID: inbox.taskID, jobsOnly: true}); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	return w, nil
}

// Dirs returns the watched directories, for status output.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.dirs))
	for dir := range w.dirs {
		dirs = append(dirs, dir)
	}
	return dirs
}

// Run processes events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: fsnotify error: %v", err)
		}
	}
}

// Close stops pending triggers and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
	w.mu.Unlock()
	return w.fs.Close()
}

// handleEvent schedules a trigger for a relevant event and reports
// whether it did.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	name := filepath.Base(event.Name)
	if ignored(name) {
		return false
	}

	w.mu.Lock()
	t, ok := w.dirs[filepath.Dir(event.Name)]
	w.mu.Unlock()
	if !ok {
		return false
	}

	info, err := os.Stat(event.Name)
	if err == nil && info.IsDir() {
		if t.recursive && event.Has(fsnotify.Create) {
			if err := w.addTree(event.Name, t); err != nil {
				logger.Warn("watcher: not watching %s: %v", event.Name, err)
			}
		}
		return false
	}

	if t.jobsOnly && !strings.EqualFold(filepath.Ext(name), ".json") {
		return false
	}

	logger.Debug("watcher: %s %s", event.Op, event.Name)
	w.schedule(t.taskID)
	return true
}

// schedule (re)starts the debounce timer of a task.
func (w *Watcher) schedule(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, ok := w.timers[taskID]; ok {
		timer.Stop()
	}
	w.timers[taskID] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, taskID)
		w.mu.Unlock()
		logger.Debug("watcher: triggering %s", taskID)
		w.trigger.Trigger(taskID)
	})
}

// addTree watches root and, for recursive targets, every visible
// sub-directory below it.
func (w *Watcher) addTree(root string, t target) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrConfig, root)
	}
	if !t.recursive {
		return w.add(root, t)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(d.Name()) {
			return filepath.SkipDir
		}
		return w.add(path, t)
	})
}

func (w *Watcher) add(dir string, t target) error {
	dir = filepath.Clean(dir)
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.mu.Lock()
	w.dirs[dir] = t
	w.mu.Unlock()
	return nil
}

// ignored reports whether a file or directory name is hidden or an
// editor lock file.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}
