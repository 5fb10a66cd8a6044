package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage the stored repository password",
	Long: `Stores the repository password in the system keyring under the
configured auth.keyring_service and auth.username.

The CMSYNC_PASSWORD environment variable overrides the stored password.`,
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the repository password",
	Args:  cobra.NoArgs,
	RunE:  runPasswordSet,
}

var passwordClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored repository password",
	Args:  cobra.NoArgs,
	RunE:  runPasswordClear,
}

// passwordReader reads a password from the terminal. Tests replace it.
var passwordReader = readPassword

func init() {
	passwordCmd.AddCommand(passwordSetCmd)
	passwordCmd.AddCommand(passwordClearCmd)
	rootCmd.AddCommand(passwordCmd)
}

func runPasswordSet(cmd *cobra.Command, _ []string) error {
	if credentialService == nil {
		return errors.New("credential service not configured")
	}

	cmd.Printf("Password for %s: ", credentialService.Username())
	password, err := passwordReader(cmd.InOrStdin())
	cmd.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := credentialService.SetPassword(password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	cmd.Println("Password stored.")
	return nil
}

func runPasswordClear(cmd *cobra.Command, _ []string) error {
	if credentialService == nil {
		return errors.New("credential service not configured")
	}
	if err := credentialService.ClearPassword(); err != nil {
		return fmt.Errorf("failed to clear password: %w", err)
	}
	cmd.Println("Password removed.")
	return nil
}

// readPassword reads without echo from a terminal, or a line otherwise.
func readPassword(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(password), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
