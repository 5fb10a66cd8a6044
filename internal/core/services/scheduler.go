package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// probeTimeout bounds a single connectivity probe.
const probeTimeout = 10 * time.Second

// Inbox sub-directories job files are moved to once handled.
const (
	inboxProcessedDir = "processed"
	inboxFailedDir    = "failed"
)

// Scheduler is the daemon loop. It runs scan directories and job inboxes
// when they are due and, while the repository is unreachable, probes it
// every retry interval instead of running anything.
type Scheduler struct {
	cfg    domain.Config
	store  driven.SchedulerStore
	jobs   driving.JobRunner
	client driven.RepositoryClient
	outage *domain.OutageFlag

	// tick overrides the loop interval; tests set it.
	tick time.Duration

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	triggerCh chan string
	wg        sync.WaitGroup
	busy      map[string]bool
	startedAt time.Time
	lastProbe time.Time
}

var _ driving.Scheduler = (*Scheduler)(nil)

// NewScheduler creates the daemon loop.
// client may be nil, in which case the daemon stays paused.
func NewScheduler(
	cfg domain.Config,
	store driven.SchedulerStore,
	jobs driving.JobRunner,
	client driven.RepositoryClient,
	outage *domain.OutageFlag,
) *Scheduler {
	if outage == nil {
		outage = &domain.OutageFlag{}
	}
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		jobs:      jobs,
		client:    client,
		outage:    outage,
		triggerCh: make(chan string, 16),
		busy:      make(map[string]bool),
	}
}

// Start begins the daemon loop. This method blocks until Stop is called
// or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.startedAt = time.Now()
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	logger.Info("scheduler: started with %d scan directories", len(s.cfg.ScanDirectories))
	if !s.probe(ctx) {
		logger.Warn("scheduler: repository unreachable at startup, paused")
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the loop and waits for running jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Trigger marks a task due so it runs on the next pass.
func (s *Scheduler) Trigger(taskID string) {
	select {
	case s.triggerCh <- taskID:
	default:
		logger.Debug("scheduler: trigger queue full, dropping %s", taskID)
	}
}

// Status returns a snapshot of the daemon state.
func (s *Scheduler) Status(ctx context.Context) (*driving.DaemonStatus, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()
	return &driving.DaemonStatus{
		Running:   s.running,
		Paused:    s.outage.IsSet(),
		StartedAt: s.startedAt,
		LastProbe: s.lastProbe,
		Tasks:     tasks,
	}, nil
}

// initialiseTasks ensures every configured scan directory and inbox has
// a task in the store and removes tasks that are no longer configured.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	wanted := make(map[string]bool)

	for _, dir := range s.cfg.ScanDirectories {
		id := domain.ScanTaskID(dir.Path)
		if wanted[id] {
			logger.Warn("scheduler: duplicate scan directory %s ignored", dir.Path)
			continue
		}
		wanted[id] = true
		if err := s.ensureTask(ctx, id, "Scan "+dir.Path, dir.Interval, dir.Enabled); err != nil {
			return err
		}
	}
	if s.cfg.Jobs.DownloadDir != "" {
		wanted[domain.TaskIDDownloadInbox] = true
		if err := s.ensureTask(ctx, domain.TaskIDDownloadInbox, "Download job inbox",
			domain.DefaultInboxPollInterval, true); err != nil {
			return err
		}
	}
	if s.cfg.Jobs.MetadataDir != "" {
		wanted[domain.TaskIDMetadataInbox] = true
		if err := s.ensureTask(ctx, domain.TaskIDMetadataInbox, "Metadata job inbox",
			domain.DefaultInboxPollInterval, true); err != nil {
			return err
		}
	}

	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		if !wanted[task.ID] {
			logger.Info("scheduler: removing unconfigured task %s", task.ID)
			if err := s.store.DeleteTask(ctx, task.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
// A one-shot task that already ran stays disabled.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, interval time.Duration, enabled bool) error {
	if interval < 0 {
		interval = 0
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: interval,
			Enabled:  enabled,
		}
	} else {
		if task.Interval != interval {
			task.Interval = interval
			task.NextRun = time.Time{}
		}
		oneShotDone := interval == 0 && !task.LastRun.IsZero()
		task.Enabled = enabled && !oneShotDone
		task.Name = name
	}

	return s.store.SaveTask(ctx, task)
}

// loopInterval returns the shortest configured interval, bounded by the
// idle interval.
func (s *Scheduler) loopInterval() time.Duration {
	if s.tick > 0 {
		return s.tick
	}
	interval := s.cfg.Daemon.IdleInterval
	if interval <= 0 {
		interval = domain.DefaultIdleInterval
	}
	for _, dir := range s.cfg.ScanDirectories {
		if dir.Enabled && dir.Interval > 0 && dir.Interval < interval {
			interval = dir.Interval
		}
	}
	return interval
}

// run is the main loop.
func (s *Scheduler) run(ctx context.Context) error {
	s.pass(ctx)

	ticker := time.NewTicker(s.loopInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case id := <-s.triggerCh:
			s.markDue(ctx, id)
			s.pass(ctx)
		case <-ticker.C:
			s.pass(ctx)
		}
	}
}

// pass runs due tasks, or probes the repository while paused.
func (s *Scheduler) pass(ctx context.Context) {
	if s.outage.IsSet() {
		retry := s.cfg.Daemon.ConnectionRetryInterval
		if retry <= 0 {
			retry = domain.DefaultConnectionRetryInterval
		}
		s.mu.Lock()
		since := time.Since(s.lastProbe)
		s.mu.Unlock()
		if since < retry {
			return
		}
		if !s.probe(ctx) {
			logger.Warn("scheduler: repository still unreachable, next probe in %s", retry)
			return
		}
	}
	s.checkAndRunDueTasks(ctx)
}

// probe tests connectivity and clears the outage flag on success.
func (s *Scheduler) probe(ctx context.Context) bool {
	s.mu.Lock()
	s.lastProbe = time.Now()
	s.mu.Unlock()

	if s.client == nil {
		s.outage.Set()
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	ok, err := s.client.TestConnection(probeCtx)
	if err != nil || !ok {
		if err != nil {
			logger.Debug("scheduler: probe failed: %v", err)
		}
		s.outage.Set()
		return false
	}
	if s.outage.IsSet() {
		logger.Info("scheduler: repository reachable again, resuming")
	}
	s.outage.Clear()
	return true
}

// markDue sets a task's next run to now.
func (s *Scheduler) markDue(ctx context.Context, id string) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil || task == nil {
		logger.Debug("scheduler: trigger for unknown task %s", id)
		return
	}
	task.NextRun = time.Now()
	task.Enabled = true
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Error("scheduler: failed to save task %s: %v", id, err)
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := tasks[i]
		if task.Due(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task unless it is already running.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.busy[task.ID] {
		s.mu.Unlock()
		return
	}
	s.busy[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.busy, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		reports, err := s.execute(ctx, task.ID)
		result.EndedAt = time.Now()

		interrupted := false
		result.Success = err == nil
		for _, r := range reports {
			result.ItemsProcessed += r.Summary.Processed()
			if !r.Status.IsSuccess() {
				result.Success = false
				if result.Error == "" {
					result.Error = string(r.Status)
				}
			}
			if r.Status == domain.JobPartialOutage {
				interrupted = true
			}
		}
		if err != nil {
			result.Error = err.Error()
		}

		task.LastRun = result.StartedAt
		task.LastError = result.Error
		if result.Success {
			task.LastSuccess = result.EndedAt
		}
		if task.Interval > 0 {
			task.NextRun = result.EndedAt.Add(task.Interval)
		} else if !interrupted {
			// One-shot tasks are disabled after a run that was not cut short by an outage.
			task.Enabled = false
		}

		storeCtx := context.WithoutCancel(ctx)
		if saveErr := s.store.SaveTask(storeCtx, task); saveErr != nil {
			logger.Error("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(storeCtx, result); recordErr != nil {
			logger.Error("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(storeCtx, domain.DefaultHistoryRetention); pruneErr != nil {
			logger.Error("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// execute dispatches a task to the job runner.
func (s *Scheduler) execute(ctx context.Context, taskID string) ([]*domain.JobReport, error) {
	if s.jobs == nil {
		return nil, errors.New("job runner not configured")
	}

	if path, ok := domain.ScanPath(taskID); ok {
		dir, found := s.scanDirectory(path)
		if !found {
			return nil, fmt.Errorf("%w: scan directory %s", domain.ErrNotFound, path)
		}
		return []*domain.JobReport{s.jobs.ScanDirectory(ctx, dir)}, nil
	}

	switch taskID {
	case domain.TaskIDDownloadInbox:
		return s.processInbox(ctx, s.cfg.Jobs.DownloadDir, s.jobs.RunDownloadJob)
	case domain.TaskIDMetadataInbox:
		return s.processInbox(ctx, s.cfg.Jobs.MetadataDir, s.jobs.RunMetadataJob)
	default:
		return nil, fmt.Errorf("%w: task %s", domain.ErrNotFound, taskID)
	}
}

func (s *Scheduler) scanDirectory(path string) (domain.ScanDirectory, bool) {
	for _, dir := range s.cfg.ScanDirectories {
		if dir.Path == path {
			return dir, true
		}
	}
	return domain.ScanDirectory{}, false
}

// processInbox runs every job file in dir. Handled files move to
// processed/, unusable ones to failed/. Files of a job interrupted by an
// outage stay in the inbox to be retried.
func (s *Scheduler) processInbox(
	ctx context.Context,
	dir string,
	run func(context.Context, string) *domain.JobReport,
) ([]*domain.JobReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var reports []*domain.JobReport
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") || isHidden(entry.Name()) {
			continue
		}
		if s.outage.IsSet() || ctx.Err() != nil {
			break
		}

		path := filepath.Join(dir, entry.Name())
		report := run(ctx, path)
		reports = append(reports, report)

		switch report.Status {
		case domain.JobPartialOutage:
			continue
		case domain.JobErrorConfig:
			s.fileJob(path, filepath.Join(dir, inboxFailedDir))
		default:
			s.fileJob(path, filepath.Join(dir, inboxProcessedDir))
		}
	}
	return reports, nil
}

// fileJob moves a handled job file into dest.
func (s *Scheduler) fileJob(path, dest string) {
	if err := os.MkdirAll(dest, 0755); err != nil {
		logger.Error("scheduler: create %s: %v", dest, err)
		return
	}
	if _, err := moveUnique(path, dest); err != nil {
		logger.Error("scheduler: move job file %s: %v", path, err)
	}
}
