package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchItemType string
	searchJSON     bool
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that the repository is reachable",
	Args:  cobra.NoArgs,
	RunE:  runTestConnection,
}

var searchCmd = &cobra.Command{
	Use:   "search <attribute=value>...",
	Short: "Search repository documents by attribute",
	Long: `Finds documents whose attributes match every attribute=value pair.
Restrict the search to one item type with --itemtype.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a repository document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	searchCmd.Flags().StringVarP(&searchItemType, "itemtype", "t", "", "item type to search")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runTestConnection(cmd *cobra.Command, _ []string) error {
	if repositoryService == nil {
		return errors.New("repository service not configured")
	}
	if err := repositoryService.TestConnection(cmd.Context()); err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	cmd.Println(successStyle.Render("Repository connection OK."))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if repositoryService == nil {
		return errors.New("repository service not configured")
	}

	criteria, err := parseCriteria(args)
	if err != nil {
		return err
	}

	items, err := repositoryService.Search(cmd.Context(), criteria, searchItemType)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, items)
	}

	if len(items) == 0 {
		cmd.Println("No documents found.")
		return nil
	}
	for _, item := range items {
		cmd.Println(titleStyle.Render(item.ID) + " " + mutedStyle.Render(item.ItemType))
		keys := make([]string, 0, len(item.Attributes))
		for k := range item.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("  %s: %v\n", k, item.Attributes[k])
		}
	}
	cmd.Printf("\n%d document(s)\n", len(items))
	return nil
}

// parseCriteria turns attribute=value arguments into search criteria.
func parseCriteria(args []string) (map[string]string, error) {
	criteria := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid criterion %q, expected attribute=value", arg)
		}
		criteria[key] = value
	}
	return criteria, nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if repositoryService == nil {
		return errors.New("repository service not configured")
	}
	if err := repositoryService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
