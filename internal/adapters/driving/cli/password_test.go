package cli

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

func TestPasswordSetCmd(t *testing.T) {
	creds := &mockCredentialService{}
	setupServices(t, &Services{Credentials: creds})

	out, err := executeContext(t, t.Context(), "s3cret\n", "password", "set")

	require.NoError(t, err)
	assert.Equal(t, "s3cret", creds.password)
	assert.Contains(t, out, "Password for svc-user:")
	assert.Contains(t, out, "Password stored.")
}

func TestPasswordSetCmd_StoreError(t *testing.T) {
	creds := &mockCredentialService{err: domain.ErrInvalidInput}
	setupServices(t, &Services{Credentials: creds})

	_, err := executeContext(t, t.Context(), "\n", "password", "set")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPasswordSetCmd_ReadError(t *testing.T) {
	creds := &mockCredentialService{}
	setupServices(t, &Services{Credentials: creds})

	original := passwordReader
	passwordReader = func(io.Reader) (string, error) { return "", errors.New("tty gone") }
	defer func() { passwordReader = original }()

	_, err := execute(t, "password", "set")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read password")
	assert.Empty(t, creds.password)
}

func TestPasswordClearCmd(t *testing.T) {
	creds := &mockCredentialService{}
	setupServices(t, &Services{Credentials: creds})

	out, err := execute(t, "password", "clear")

	require.NoError(t, err)
	assert.True(t, creds.cleared)
	assert.Contains(t, out, "Password removed.")
}

func TestReadPassword_NonTerminal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"secret\n", "secret"},
		{"secret\r\n", "secret"},
		{"no-newline", "no-newline"},
		{" spaced \n", " spaced "},
		{"", ""},
	}

	for _, tt := range tests {
		got, err := readPassword(strings.NewReader(tt.input))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
