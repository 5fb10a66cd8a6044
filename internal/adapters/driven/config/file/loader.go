package file

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
)

// Configuration keys.
const (
	KeyAPIBaseURL        = "repository.api_base_url"
	KeyUserAgent         = "repository.user_agent"
	KeyRequestTimeout    = "repository.request_timeout_seconds"
	KeyRequestsPerSecond = "repository.requests_per_second"

	KeyLoginURL             = "auth.login_url"
	KeyLoginHost            = "auth.login_host"
	KeyUsername             = "auth.username"
	KeyServerName           = "auth.servername"
	KeyKeyringService       = "auth.keyring_service"
	KeyTokenValidity        = "auth.token_validity_seconds"
	KeyTokenExpiryThreshold = "auth.token_expiry_threshold_seconds"

	KeyMaxParallelUploads         = "performance.max_parallel_uploads"
	KeyMaxParallelDownloads       = "performance.max_parallel_downloads"
	KeyMaxParallelMetadataUpdates = "performance.max_parallel_metadata_updates"

	KeyDefaultTargetDirectory = "download.default_target_directory"
	KeyFailedArchiveDirectory = "download.failed_archive_directory"

	KeyConnectionRetryInterval = "daemon.connection_retry_interval_seconds"
	KeyIdleInterval            = "daemon.idle_interval_seconds"
	KeyDataDir                 = "daemon.data_dir"

	KeyLogLevel      = "logging.level"
	KeyLogFilePath   = "logging.log_file_path"
	KeyLogMaxSizeMB  = "logging.max_size_mb"
	KeyLogMaxBackups = "logging.max_backups"
	KeyLogMaxAgeDays = "logging.max_age_days"

	KeyWebEnabled       = "web.enabled"
	KeyWebListenAddress = "web.listen_address"

	KeyJobsDownloadDir = "jobs.download_dir"
	KeyJobsMetadataDir = "jobs.metadata_dir"

	KeyScanDirectories = "scan_directories"
)

// LoadConfig decodes the store into a typed configuration with defaults applied.
// Relative data and log paths are resolved against the configuration directory.
// Every wrongly typed key is reported; scan directories are validated later,
// when they are scanned.
func LoadConfig(store driven.ConfigStore) (domain.Config, error) {
	cfg := domain.DefaultConfig()
	d := decoder{get: store.Get}

	d.str(KeyAPIBaseURL, &cfg.Repository.APIBaseURL)
	d.str(KeyUserAgent, &cfg.Repository.UserAgent)
	d.seconds(KeyRequestTimeout, &cfg.Repository.RequestTimeout)
	d.float(KeyRequestsPerSecond, &cfg.Repository.RequestsPerSecond)

	d.str(KeyLoginURL, &cfg.Auth.LoginURL)
	d.str(KeyLoginHost, &cfg.Auth.LoginHost)
	d.str(KeyUsername, &cfg.Auth.Username)
	d.str(KeyServerName, &cfg.Auth.ServerName)
	d.str(KeyKeyringService, &cfg.Auth.KeyringService)
	d.seconds(KeyTokenValidity, &cfg.Auth.TokenValidity)
	d.seconds(KeyTokenExpiryThreshold, &cfg.Auth.TokenExpiryThreshold)

	d.integer(KeyMaxParallelUploads, &cfg.Performance.MaxParallelUploads)
	d.integer(KeyMaxParallelDownloads, &cfg.Performance.MaxParallelDownloads)
	d.integer(KeyMaxParallelMetadataUpdates, &cfg.Performance.MaxParallelMetadataUpdates)

	d.str(KeyDefaultTargetDirectory, &cfg.Download.DefaultTargetDirectory)
	d.str(KeyFailedArchiveDirectory, &cfg.Download.FailedArchiveDirectory)

	d.seconds(KeyConnectionRetryInterval, &cfg.Daemon.ConnectionRetryInterval)
	d.seconds(KeyIdleInterval, &cfg.Daemon.IdleInterval)
	d.str(KeyDataDir, &cfg.Daemon.DataDir)

	d.str(KeyLogLevel, &cfg.Logging.Level)
	d.str(KeyLogFilePath, &cfg.Logging.FilePath)
	d.integer(KeyLogMaxSizeMB, &cfg.Logging.MaxSizeMB)
	d.integer(KeyLogMaxBackups, &cfg.Logging.MaxBackups)
	d.integer(KeyLogMaxAgeDays, &cfg.Logging.MaxAgeDays)

	d.boolean(KeyWebEnabled, &cfg.Web.Enabled)
	d.str(KeyWebListenAddress, &cfg.Web.ListenAddress)

	d.str(KeyJobsDownloadDir, &cfg.Jobs.DownloadDir)
	d.str(KeyJobsMetadataDir, &cfg.Jobs.MetadataDir)

	cfg.ScanDirectories = d.scanDirectories()

	baseDir := filepath.Dir(store.Path())
	if cfg.Daemon.DataDir == "" {
		cfg.Daemon.DataDir = baseDir
	} else if !filepath.IsAbs(cfg.Daemon.DataDir) {
		cfg.Daemon.DataDir = filepath.Join(baseDir, cfg.Daemon.DataDir)
	}
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(cfg.Daemon.DataDir, cfg.Logging.FilePath)
	}

	if d.err != nil {
		return cfg, fmt.Errorf("%w: %s: %w", domain.ErrConfig, store.Path(), d.err)
	}
	return cfg, nil
}

// decoder reads typed values, accumulating type errors.
type decoder struct {
	get func(key string) (any, bool)
	err error
}

func (d *decoder) fail(key, want string, got any) {
	d.err = multierr.Append(d.err, fmt.Errorf("%s: expected %s, got %T", key, want, got))
}

func (d *decoder) str(key string, dst *string) {
	val, ok := d.get(key)
	if !ok {
		return
	}
	s, ok := val.(string)
	if !ok {
		d.fail(key, "string", val)
		return
	}
	*dst = s
}

func (d *decoder) integer(key string, dst *int) {
	val, ok := d.get(key)
	if !ok {
		return
	}
	n, ok := toInt(val)
	if !ok {
		d.fail(key, "integer", val)
		return
	}
	*dst = n
}

func (d *decoder) float(key string, dst *float64) {
	val, ok := d.get(key)
	if !ok {
		return
	}
	f, ok := toFloat(val)
	if !ok {
		d.fail(key, "number", val)
		return
	}
	*dst = f
}

func (d *decoder) seconds(key string, dst *time.Duration) {
	val, ok := d.get(key)
	if !ok {
		return
	}
	f, ok := toFloat(val)
	if !ok {
		d.fail(key, "number of seconds", val)
		return
	}
	*dst = time.Duration(f * float64(time.Second))
}

func (d *decoder) boolean(key string, dst *bool) {
	val, ok := d.get(key)
	if !ok {
		return
	}
	b, ok := val.(bool)
	if !ok {
		d.fail(key, "boolean", val)
		return
	}
	*dst = b
}

func (d *decoder) scanDirectories() []domain.ScanDirectory {
	val, ok := d.get(KeyScanDirectories)
	if !ok {
		return nil
	}
	entries, ok := val.([]any)
	if !ok {
		d.fail(KeyScanDirectories, "array of tables", val)
		return nil
	}

	dirs := make([]domain.ScanDirectory, 0, len(entries))
	for i, entry := range entries {
		table, ok := entry.(map[string]any)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", KeyScanDirectories, i), "table", entry)
			continue
		}
		dirs = append(dirs, d.scanDirectory(fmt.Sprintf("%s[%d]", KeyScanDirectories, i), table))
	}
	return dirs
}

func (d *decoder) scanDirectory(prefix string, table map[string]any) domain.ScanDirectory {
	dir := domain.ScanDirectory{
		FilePattern: domain.DefaultFilePattern,
		Enabled:     true,
	}
	sub := decoder{get: func(key string) (any, bool) {
		v, ok := table[key]
		return v, ok
	}}

	sub.str("path", &dir.Path)
	sub.str("target_itemtype", &dir.ItemType)
	sub.str("file_pattern", &dir.FilePattern)
	sub.boolean("recursive_scan", &dir.Recursive)
	sub.seconds("scan_interval_seconds", &dir.Interval)
	sub.boolean("enabled", &dir.Enabled)
	sub.boolean("watch", &dir.Watch)
	sub.str("move_target_directory", &dir.MoveTarget)

	var action string
	sub.str("action_after_upload", &action)
	dir.Action = domain.PostUploadAction(action)

	if sub.err != nil {
		for _, err := range multierr.Errors(sub.err) {
			d.err = multierr.Append(d.err, fmt.Errorf("%s.%w", prefix, err))
		}
	}
	if dir.FilePattern == "" {
		dir.FilePattern = domain.DefaultFilePattern
	}
	return dir
}

func toInt(val any) (int, bool) {
	switch v := val.(type) {
	case int64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
