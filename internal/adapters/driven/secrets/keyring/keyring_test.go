package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

func newTestStore(env map[string]string) *Store {
	gokeyring.MockInit()
	return &Store{getenv: func(k string) string { return env[k] }}
}

func TestStore_SetGetDelete(t *testing.T) {
	store := newTestStore(nil)

	require.NoError(t, store.SetPassword("cmsync", "svc", "s3cret"))

	pw, err := store.GetPassword("cmsync", "svc")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	require.NoError(t, store.DeletePassword("cmsync", "svc"))
	_, err = store.GetPassword("cmsync", "svc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_GetPassword_NotFound(t *testing.T) {
	store := newTestStore(nil)

	_, err := store.GetPassword("cmsync", "nobody")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_DeletePassword_NotFound(t *testing.T) {
	store := newTestStore(nil)

	err := store.DeletePassword("cmsync", "nobody")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_EnvironmentOverrides(t *testing.T) {
	store := newTestStore(map[string]string{EnvPassword: "from-env"})
	require.NoError(t, store.SetPassword("cmsync", "svc", "from-keychain"))

	pw, err := store.GetPassword("cmsync", "svc")

	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)
}

func TestStore_GetPassword_NoUsername(t *testing.T) {
	store := newTestStore(nil)

	_, err := store.GetPassword("cmsync", "")

	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}
