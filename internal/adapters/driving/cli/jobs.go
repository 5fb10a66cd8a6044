package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/custodia-labs/cmsync/internal/core/domain"
)

var (
	scanItemType  string
	scanPattern   string
	scanRecursive bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Upload files from scan directories once",
	Long: `Scans a directory and uploads every matching file.

Without arguments every enabled scan directory in the configuration is
scanned once. A directory that is not configured can be scanned by
giving its item type with --itemtype; files are left in place.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

var downloadCmd = &cobra.Command{
	Use:   "download <job-file>",
	Short: "Run a download job file",
	Long: `Downloads the documents listed in a JSON job file:

  {"job_name": "...", "default_target_directory": "...",
   "downloads": [{"doc_id": "...", "target_filename": "..."}]}`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

var updateMetadataCmd = &cobra.Command{
	Use:   "update-metadata <job-file>",
	Short: "Run a metadata update job file",
	Long: `Updates document attributes from a JSON job file. Documents are
addressed by doc_id or by object_id, object_id_field_name and
item_type_context:

  {"job_name": "...", "updates": [{"doc_id": "...", "metadata": {...}}]}`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdateMetadata,
}

func init() {
	scanCmd.Flags().StringVar(&scanItemType, "itemtype", "", "item type for an unconfigured directory")
	scanCmd.Flags().StringVar(&scanPattern, "pattern", domain.DefaultFilePattern, "file glob for an unconfigured directory")
	scanCmd.Flags().BoolVarP(&scanRecursive, "recursive", "r", false, "include sub-directories of an unconfigured directory")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(updateMetadataCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if jobRunner == nil {
		return errors.New("job service not configured")
	}

	dirs, err := scanTargets(args)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		cmd.Println("No enabled scan directories configured.")
		return nil
	}

	var errs error
	for i, dir := range dirs {
		if i > 0 {
			cmd.Println()
		}
		report := jobRunner.ScanDirectory(cmd.Context(), dir)
		printReport(cmd, report)
		errs = multierr.Append(errs, reportError(report))
	}
	return errs
}

// scanTargets resolves the directories to scan from the arguments.
func scanTargets(args []string) ([]domain.ScanDirectory, error) {
	if len(args) == 0 {
		var dirs []domain.ScanDirectory
		for _, dir := range appConfig.ScanDirectories {
			if dir.Enabled {
				dirs = append(dirs, dir)
			}
		}
		return dirs, nil
	}

	path := filepath.Clean(args[0])
	for _, dir := range appConfig.ScanDirectories {
		if filepath.Clean(dir.Path) == path {
			return []domain.ScanDirectory{dir}, nil
		}
	}
	if scanItemType == "" {
		return nil, fmt.Errorf("%s is not a configured scan directory; use --itemtype to scan it", path)
	}
	return []domain.ScanDirectory{{
		Path:        path,
		ItemType:    scanItemType,
		FilePattern: scanPattern,
		Recursive:   scanRecursive,
		Enabled:     true,
	}}, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	if jobRunner == nil {
		return errors.New("job service not configured")
	}
	report := jobRunner.RunDownloadJob(cmd.Context(), args[0])
	printReport(cmd, report)
	return reportError(report)
}

func runUpdateMetadata(cmd *cobra.Command, args []string) error {
	if jobRunner == nil {
		return errors.New("job service not configured")
	}
	report := jobRunner.RunMetadataJob(cmd.Context(), args[0])
	printReport(cmd, report)
	return reportError(report)
}
