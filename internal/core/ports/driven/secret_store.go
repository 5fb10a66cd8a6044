package driven

// SecretStore persists secrets in the operating system keychain.
type SecretStore interface {
	// GetPassword returns the stored password for a user.
	// Returns domain.ErrNotFound if nothing is stored.
	GetPassword(service, username string) (string, error)

	// SetPassword stores a password for a user, replacing any existing one.
	SetPassword(service, username, password string) error

	// DeletePassword removes the stored password.
	DeletePassword(service, username string) error
}
