// Package keyring stores the repository password in the operating system
// keychain through github.com/zalando/go-keyring.
package keyring

import (
	"errors"
	"fmt"
	"os"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
)

// EnvPassword overrides the keychain when set.
const EnvPassword = "CMSYNC_PASSWORD"

// Ensure Store implements the interface.
var _ driven.SecretStore = (*Store)(nil)

// Store is a keychain-backed secret store.
type Store struct {
	getenv func(string) string
}

// New creates a keychain-backed secret store.
func New() *Store {
	return &Store{getenv: os.Getenv}
}

// GetPassword returns the password from the environment or the keychain.
func (s *Store) GetPassword(service, username string) (string, error) {
	if pw := s.getenv(EnvPassword); pw != "" {
		return pw, nil
	}
	if username == "" {
		return "", fmt.Errorf("%w: no username configured", domain.ErrAuthRequired)
	}

	pw, err := gokeyring.Get(service, username)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", fmt.Errorf("password for %s in %s: %w", username, service, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read keychain: %w", err)
	}
	return pw, nil
}

// SetPassword stores a password, replacing any existing one.
func (s *Store) SetPassword(service, username, password string) error {
	if err := gokeyring.Set(service, username, password); err != nil {
		return fmt.Errorf("write keychain: %w", err)
	}
	return nil
}

// DeletePassword removes the stored password.
func (s *Store) DeletePassword(service, username string) error {
	if err := gokeyring.Delete(service, username); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return fmt.Errorf("password for %s in %s: %w", username, service, domain.ErrNotFound)
		}
		return fmt.Errorf("delete from keychain: %w", err)
	}
	return nil
}
