package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cmsync/internal/core/ports/driven"
)

// ConfigOpener opens the configuration file at path, or the default file
// when path is empty.
type ConfigOpener func(path string) (driven.ConfigStore, error)

var openConfigStore ConfigOpener

// SetConfigOpener sets how the config command reaches the configuration file.
func SetConfigOpener(fn ConfigOpener) {
	openConfigStore = fn
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the configuration file",
	Long: `Reads and writes single keys of config.toml. Keys use dot notation,
e.g. "performance.max_parallel_uploads". Scan directories are edited in
the file itself.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := configStore()
		if err != nil {
			return err
		}
		cmd.Println(store.Path())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := configStore()
		if err != nil {
			return err
		}
		value, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("%s is not set", args[0])
		}
		cmd.Println(fmt.Sprint(value))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Sets a configuration value and saves the file. Values that parse as
booleans, integers or decimals are stored with that type.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := configStore()
		if err != nil {
			return err
		}
		key := strings.TrimSpace(args[0])
		if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
			return fmt.Errorf("invalid key %q", args[0])
		}
		if err := store.Set(key, parseValue(args[1])); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		cmd.Printf("%s updated in %s\n", key, store.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func configStore() (driven.ConfigStore, error) {
	if openConfigStore == nil {
		return nil, errors.New("config store not configured")
	}
	return openConfigStore(configPath)
}

// parseValue types a command-line value the way TOML would.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && strings.Contains(raw, ".") {
		return f
	}
	return raw
}
