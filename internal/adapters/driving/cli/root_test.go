package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

func TestBootstrap_InstallsServicesAndCloses(t *testing.T) {
	setupServices(t, nil)

	var gotPath string
	closed := 0
	repo := &mockRepositoryService{}
	SetBootstrap(func(path string) (*Services, error) {
		gotPath = path
		return &Services{
			Repository: repo,
			Close: func() error {
				closed++
				return nil
			},
		}, nil
	})
	defer SetBootstrap(nil)
	defer func() { configPath = "" }()

	out, err := execute(t, "--config", "/etc/cmsync.toml", "test-connection")

	require.NoError(t, err)
	assert.Equal(t, "/etc/cmsync.toml", gotPath)
	assert.Contains(t, out, "Repository connection OK.")
	assert.Equal(t, 1, closed)

	assert.NoError(t, Close(), "second close is a no-op")
	assert.Equal(t, 1, closed)
}

func TestBootstrap_Error(t *testing.T) {
	setupServices(t, nil)
	SetBootstrap(func(string) (*Services, error) {
		return nil, domain.ErrConfig
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "test-connection")

	assert.True(t, errors.Is(err, domain.ErrConfig))
}

func TestServicesNotConfigured(t *testing.T) {
	setupServices(t, nil)

	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"scan"}, "job service not configured"},
		{[]string{"download", "job.json"}, "job service not configured"},
		{[]string{"update-metadata", "job.json"}, "job service not configured"},
		{[]string{"test-connection"}, "repository service not configured"},
		{[]string{"search", "a=b"}, "repository service not configured"},
		{[]string{"delete", "42"}, "repository service not configured"},
		{[]string{"password", "set"}, "credential service not configured"},
		{[]string{"password", "clear"}, "credential service not configured"},
		{[]string{"history"}, "history service not configured"},
		{[]string{"run"}, "scheduler not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
