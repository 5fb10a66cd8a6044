// Package cli provides the cmsync command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// version is set at build time.
var version = "dev"

var (
	configPath string
	verbose    bool
)

// Services holds everything the commands need.
type Services struct {
	Config      domain.Config
	Jobs        driving.JobRunner
	Scheduler   driving.Scheduler
	Repository  driving.RepositoryService
	Credentials driving.CredentialService
	History     driving.HistoryService

	// Close releases resources opened by the bootstrap.
	Close func() error
}

// BootstrapFunc builds the services from the config file path.
type BootstrapFunc func(configPath string) (*Services, error)

var (
	bootstrap BootstrapFunc

	appConfig         domain.Config
	jobRunner         driving.JobRunner
	scheduler         driving.Scheduler
	repositoryService driving.RepositoryService
	credentialService driving.CredentialService
	historyService    driving.HistoryService
	closeServices     func() error
)

var rootCmd = &cobra.Command{
	Use:   "cmsync",
	Short: "Content-management sync daemon",
	Long: `cmsync watches local directories and uploads new files to a
content-management repository. It also runs download and metadata
update jobs described in JSON job files.

Run "cmsync run" to start the daemon.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default ~/.cmsync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "echo log output to stderr")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap sets the function that builds the services before a command runs.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// SetServices installs services directly.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	appConfig = s.Config
	jobRunner = s.Jobs
	scheduler = s.Scheduler
	repositoryService = s.Repository
	credentialService = s.Credentials
	historyService = s.History
	closeServices = s.Close
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup applies global flags and runs the bootstrap once per invocation.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || skipsBootstrap(cmd) {
		return nil
	}
	services, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	SetServices(services)
	return nil
}

// Close releases the services. It is safe to call more than once.
func Close() error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

// skipsBootstrap reports whether a command works without loading the
// configuration, so a broken file can still be inspected and fixed.
func skipsBootstrap(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion":
		return true
	}
	return cmd.HasParent() && cmd.Parent().Name() == "config"
}
