package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
)

// mockJobRunner implements driving.JobRunner for testing.
type mockJobRunner struct {
	scanned  []domain.ScanDirectory
	jobFiles []string
	report   *domain.JobReport
}

func (m *mockJobRunner) result(name string, kind domain.WorkKind) *domain.JobReport {
	if m.report != nil {
		return m.report
	}
	return &domain.JobReport{
		ID:      "run-1",
		Name:    name,
		Kind:    kind,
		Status:  domain.JobSuccess,
		Summary: domain.BatchSummary{Successful: 2, Total: 2},
	}
}

func (m *mockJobRunner) ScanDirectory(_ context.Context, dir domain.ScanDirectory) *domain.JobReport {
	m.scanned = append(m.scanned, dir)
	return m.result(dir.Path, domain.WorkUpload)
}

func (m *mockJobRunner) RunDownloadJob(_ context.Context, path string) *domain.JobReport {
	m.jobFiles = append(m.jobFiles, path)
	return m.result("download job", domain.WorkDownload)
}

func (m *mockJobRunner) RunMetadataJob(_ context.Context, path string) *domain.JobReport {
	m.jobFiles = append(m.jobFiles, path)
	return m.result("metadata job", domain.WorkMetadata)
}

// mockScheduler implements driving.Scheduler for testing.
// Start blocks until the context is cancelled or Stop is called.
type mockScheduler struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	startErr error
	stopCh   chan struct{}
	once     sync.Once
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{stopCh: make(chan struct{})}
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.stopCh:
		return nil
	}
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.once.Do(func() { close(m.stopCh) })
	return nil
}

func (m *mockScheduler) Trigger(string) {}

func (m *mockScheduler) Status(context.Context) (*driving.DaemonStatus, error) {
	return &driving.DaemonStatus{Running: true}, nil
}

func (m *mockScheduler) wasStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// mockRepositoryService implements driving.RepositoryService for testing.
type mockRepositoryService struct {
	connErr  error
	items    []domain.Item
	err      error
	criteria map[string]string
	itemType string
	deleted  []string
}

func (m *mockRepositoryService) TestConnection(context.Context) error {
	return m.connErr
}

func (m *mockRepositoryService) Search(_ context.Context, criteria map[string]string, itemType string) ([]domain.Item, error) {
	m.criteria = criteria
	m.itemType = itemType
	return m.items, m.err
}

func (m *mockRepositoryService) Delete(_ context.Context, docID string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, docID)
	return nil
}

// mockCredentialService implements driving.CredentialService for testing.
type mockCredentialService struct {
	password string
	cleared  bool
	err      error
}

func (m *mockCredentialService) SetPassword(password string) error {
	if m.err != nil {
		return m.err
	}
	m.password = password
	return nil
}

func (m *mockCredentialService) ClearPassword() error {
	if m.err != nil {
		return m.err
	}
	m.cleared = true
	return nil
}

func (m *mockCredentialService) Username() string { return "svc-user" }

// mockHistoryService implements driving.HistoryService for testing.
type mockHistoryService struct {
	reports []domain.JobReport
	err     error
}

func (m *mockHistoryService) Recent(_ context.Context, limit int) ([]domain.JobReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.reports) {
		return m.reports[:limit], nil
	}
	return m.reports, nil
}

func (m *mockHistoryService) Get(_ context.Context, id string) (*domain.JobReport, error) {
	for i := range m.reports {
		if m.reports[i].ID == id {
			return &m.reports[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

// setupServices installs s for one test and restores the previous state.
func setupServices(t *testing.T, s *Services) {
	t.Helper()
	previous := &Services{
		Config:      appConfig,
		Jobs:        jobRunner,
		Scheduler:   scheduler,
		Repository:  repositoryService,
		Credentials: credentialService,
		History:     historyService,
		Close:       closeServices,
	}
	SetServices(s)
	t.Cleanup(func() { SetServices(previous) })
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), "", args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func resetFlags() {
	scanItemType = ""
	scanPattern = domain.DefaultFilePattern
	scanRecursive = false
	searchItemType = ""
	searchJSON = false
	historyLimit = 20
	historyJSON = false
	runNoWatch = false
	runNoWeb = false
}
