package services

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
)

// Ensure CredentialService implements the interface.
var _ driving.CredentialService = (*CredentialService)(nil)

// CredentialService manages the repository password in the secret store.
type CredentialService struct {
	store    driven.SecretStore
	service  string
	username string
}

// NewCredentialService creates a credential service for the configured user.
func NewCredentialService(store driven.SecretStore, auth domain.AuthConfig) *CredentialService {
	service := auth.KeyringService
	if service == "" {
		service = domain.DefaultKeyringService
	}
	return &CredentialService{
		store:    store,
		service:  service,
		username: auth.Username,
	}
}

// SetPassword stores the password for the configured user.
func (s *CredentialService) SetPassword(password string) error {
	if s.store == nil {
		return errors.New("secret store not configured")
	}
	if s.username == "" {
		return fmt.Errorf("%w: auth.username is not set", domain.ErrConfig)
	}
	if password == "" {
		return fmt.Errorf("%w: empty password", domain.ErrInvalidInput)
	}
	if err := s.store.SetPassword(s.service, s.username, password); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}

// ClearPassword removes the stored password. Clearing a missing password is not an error.
func (s *CredentialService) ClearPassword() error {
	if s.store == nil {
		return errors.New("secret store not configured")
	}
	if s.username == "" {
		return fmt.Errorf("%w: auth.username is not set", domain.ErrConfig)
	}
	err := s.store.DeletePassword(s.service, s.username)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete password: %w", err)
	}
	return nil
}

// Username returns the configured repository user.
func (s *CredentialService) Username() string {
	return s.username
}
