package driving

// CredentialService manages the repository password.
type CredentialService interface {
	// SetPassword stores the password for the configured user.
	SetPassword(password string) error

	// ClearPassword removes the stored password.
	ClearPassword() error

	// Username returns the configured repository user.
	Username() string
}
