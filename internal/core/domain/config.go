package domain

import (
	"fmt"
	"time"
)

// Config is the typed daemon configuration.
type Config struct {
	Repository      RepositoryConfig
	Auth            AuthConfig
	Performance     PerformanceConfig
	Download        DownloadConfig
	Daemon          DaemonConfig
	Logging         LoggingConfig
	Web             WebConfig
	Jobs            JobsConfig
	ScanDirectories []ScanDirectory
}

// RepositoryConfig holds REST endpoint settings.
type RepositoryConfig struct {
	APIBaseURL        string
	UserAgent         string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// AuthConfig holds login settings. The password itself lives in the secret store.
type AuthConfig struct {
	LoginURL       string
	LoginHost      string
	Username       string
	ServerName     string
	KeyringService string

	// TokenValidity is how long a token is assumed valid after login.
	TokenValidity time.Duration

	// TokenExpiryThreshold renews the token this long before it expires.
	TokenExpiryThreshold time.Duration
}

// PerformanceConfig holds per-kind concurrency limits.
type PerformanceConfig struct {
	MaxParallelUploads         int
	MaxParallelDownloads       int
	MaxParallelMetadataUpdates int
}

// Limit returns the configured concurrency for a work kind.
// Values are returned as configured; the batch runner coerces values below one.
func (p PerformanceConfig) Limit(kind WorkKind) int {
	switch kind {
	case WorkUpload:
		return p.MaxParallelUploads
	case WorkDownload:
		return p.MaxParallelDownloads
	case WorkMetadata:
		return p.MaxParallelMetadataUpdates
	default:
		return 1
	}
}

// DownloadConfig holds download and archive locations.
type DownloadConfig struct {
	DefaultTargetDirectory string
	FailedArchiveDirectory string
}

// DaemonConfig holds supervisor loop settings.
type DaemonConfig struct {
	// ConnectionRetryInterval is the probe interval while paused.
	ConnectionRetryInterval time.Duration

	// IdleInterval is the loop interval when no scan is due sooner.
	IdleInterval time.Duration

	// DataDir holds the run history database.
	DataDir string
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// WebConfig holds status page settings.
type WebConfig struct {
	Enabled       bool
	ListenAddress string
}

// JobsConfig holds job inbox directories.
// Job files dropped here are picked up by the daemon.
type JobsConfig struct {
	DownloadDir string
	MetadataDir string
}

// ScanDirectory describes one watched upload directory.
type ScanDirectory struct {
	Path        string
	ItemType    string
	FilePattern string
	Recursive   bool

	// Interval between scans. Zero or negative means scan once.
	Interval time.Duration

	Enabled    bool
	Watch      bool
	Action     PostUploadAction
	MoveTarget string
}

// OneShot reports whether the directory is scanned only once.
func (d ScanDirectory) OneShot() bool {
	return d.Interval <= 0
}

// Validate checks that the scan directory can be processed.
func (d ScanDirectory) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("%w: scan directory path is empty", ErrConfig)
	}
	if d.ItemType == "" {
		return fmt.Errorf("%w: scan directory %s has no target item type", ErrConfig, d.Path)
	}
	if !d.Action.Valid() {
		return fmt.Errorf("%w: scan directory %s has unknown action %q", ErrConfig, d.Path, d.Action)
	}
	return nil
}

// Defaults applied when a value is absent from the configuration file.
const (
	DefaultUserAgent               = "CMDaemon/1.0"
	DefaultRequestTimeout          = 30 * time.Second
	DefaultRequestsPerSecond       = 10.0
	DefaultTokenValidity           = time.Hour
	DefaultTokenExpiryThreshold    = 5 * time.Minute
	DefaultKeyringService          = "cmsync"
	DefaultFilePattern             = "*"
	DefaultFailedArchiveDirectory  = "failed_archive"
	DefaultConnectionRetryInterval = time.Minute
	DefaultIdleInterval            = time.Minute
	DefaultLogLevel                = "info"
	DefaultLogFile                 = "logs/daemon.log"
	DefaultLogMaxSizeMB            = 10
	DefaultLogMaxBackups           = 5
	DefaultListenAddress           = "127.0.0.1:5000"
)

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() Config {
	return Config{
		Repository: RepositoryConfig{
			UserAgent:         DefaultUserAgent,
			RequestTimeout:    DefaultRequestTimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
		Auth: AuthConfig{
			KeyringService:       DefaultKeyringService,
			TokenValidity:        DefaultTokenValidity,
			TokenExpiryThreshold: DefaultTokenExpiryThreshold,
		},
		Performance: PerformanceConfig{
			MaxParallelUploads:         1,
			MaxParallelDownloads:       1,
			MaxParallelMetadataUpdates: 1,
		},
		Download: DownloadConfig{
			FailedArchiveDirectory: DefaultFailedArchiveDirectory,
		},
		Daemon: DaemonConfig{
			ConnectionRetryInterval: DefaultConnectionRetryInterval,
			IdleInterval:            DefaultIdleInterval,
		},
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			FilePath:   DefaultLogFile,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
		},
		Web: WebConfig{
			ListenAddress: DefaultListenAddress,
		},
	}
}

// TokenRenewAfter returns how long a fresh token is used before renewal.
func (a AuthConfig) TokenRenewAfter() time.Duration {
	renew := a.TokenValidity - a.TokenExpiryThreshold
	if renew <= 0 {
		return a.TokenValidity
	}
	return renew
}
