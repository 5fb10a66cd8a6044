// Command cmsync runs the content-management sync daemon and its
// one-shot commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"

	"github.com/custodia-labs/cmsync/internal/adapters/driven/cm"
	"github.com/custodia-labs/cmsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/cmsync/internal/adapters/driven/secrets/keyring"
	"github.com/custodia-labs/cmsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cmsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/cmsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
	"github.com/custodia-labs/cmsync/internal/core/services"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)
	cli.SetConfigOpener(func(path string) (driven.ConfigStore, error) {
		store, err := openConfig(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	})

	err := cli.Execute()
	if closeErr := cli.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "cmsync: %v\n", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// bootstrap loads the configuration and wires the services.
func bootstrap(configPath string) (*cli.Services, error) {
	store, err := openConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := file.LoadConfig(store)
	if err != nil {
		return nil, err
	}

	if err := logger.Configure(logger.Options{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return nil, err
	}
	logger.Debug("config loaded from %s", store.Path())

	runs, schedule, closeStore := openStores(cfg.Daemon.DataDir)

	secrets := keyring.New()
	client := newRepositoryClient(cfg, secrets)

	outage := &domain.OutageFlag{}
	runner := services.NewBatchRunner(outage)
	jobs := services.NewJobService(cfg, client, runner, runs)

	return &cli.Services{
		Config:      cfg,
		Jobs:        jobs,
		Scheduler:   services.NewScheduler(cfg, schedule, jobs, client, outage),
		Repository:  services.NewRepositoryService(client, outage),
		Credentials: services.NewCredentialService(secrets, cfg.Auth),
		History:     services.NewHistoryService(runs),
		Close: func() error {
			return multierr.Combine(closeStore(), logger.Close())
		},
	}, nil
}

// openStores opens the SQLite database, falling back to in-memory
// stores when it cannot be opened.
func openStores(dataDir string) (driven.RunStore, driven.SchedulerStore, func() error) {
	db, err := sqlite.NewStore(dataDir)
	if err != nil {
		logger.Error("open database in %s: %v; history will not be kept", dataDir, err)
		return memory.NewRunStore(), memory.NewSchedulerStore(), func() error { return nil }
	}
	return db.RunStore(), db.SchedulerStore(), db.Close
}

func openConfig(path string) (*file.ConfigStore, error) {
	if path != "" {
		return file.OpenConfigFile(path)
	}
	return file.NewConfigStore("")
}

// newRepositoryClient builds the CM client. It returns nil when no
// password is available or the configuration is incomplete; work items
// then fail with no client and the daemon stays paused.
func newRepositoryClient(cfg domain.Config, secrets driven.SecretStore) driven.RepositoryClient {
	password, err := secrets.GetPassword(cfg.Auth.KeyringService, cfg.Auth.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn("no password stored for %s; run 'cmsync password set'", cfg.Auth.Username)
		} else {
			logger.Warn("reading password: %v", err)
		}
		return nil
	}

	tokens, err := cm.NewLoginTokenProvider(cfg.Auth, password, cfg.Repository.UserAgent)
	if err != nil {
		logger.Warn("repository login unavailable: %v", err)
		return nil
	}
	client, err := cm.NewClient(cfg.Repository, tokens)
	if err != nil {
		logger.Warn("repository client unavailable: %v", err)
		return nil
	}
	return client
}
