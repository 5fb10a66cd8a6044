package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/logger"
)

// ScanDirectory uploads every file in dir that matches its pattern.
func (s *JobService) ScanDirectory(ctx context.Context, dir domain.ScanDirectory) *domain.JobReport {
	report := newReport(dir.Path, domain.WorkUpload, dir.Path)
	logger.Section("Scan " + dir.Path)

	if err := dir.Validate(); err != nil {
		return s.configError(ctx, report, err)
	}
	pattern := dir.FilePattern
	if pattern == "" {
		pattern = domain.DefaultFilePattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return s.configError(ctx, report, fmt.Errorf("%w: file pattern %q: %v", domain.ErrConfig, pattern, err))
	}
	info, err := os.Stat(dir.Path)
	if err != nil || !info.IsDir() {
		return s.configError(ctx, report, fmt.Errorf("%w: %s is not a directory", domain.ErrConfig, dir.Path))
	}

	files, stopped, err := s.collectFiles(dir.Path, pattern, dir.Recursive)
	if err != nil {
		return s.configError(ctx, report, fmt.Errorf("%w: scan %s: %v", domain.ErrConfig, dir.Path, err))
	}
	logger.Info("scan %s: %d files match %q", dir.Path, len(files), pattern)

	items := make([]domain.WorkItem, 0, len(files))
	for _, f := range files {
		items = append(items, domain.NewUploadItem(domain.UploadRequest{
			Path:       f,
			ItemType:   dir.ItemType,
			ScanRoot:   dir.Path,
			Recursive:  dir.Recursive,
			Action:     dir.Action,
			MoveTarget: dir.MoveTarget,
		}))
	}

	summary := s.runner.Run(ctx, dir.Path, items, s.cfg.Performance.MaxParallelUploads, s.uploads)
	if stopped {
		logger.Warn("scan %s: enumeration stopped by repository outage", dir.Path)
		summary.OutageInterrupted = true
	}
	return s.finish(ctx, report, summary)
}

// collectFiles lists regular, non-hidden files under root whose base name
// matches pattern. Enumeration stops early during an outage, in which case
// stopped is true and files holds only what was found before the stop.
func (s *JobService) collectFiles(root, pattern string, recursive bool) (files []string, stopped bool, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("scan %s: skipping %s: %v", root, path, err)
			return nil
		}
		if s.runner.Outage().IsSet() {
			stopped = true
			return fs.SkipAll
		}
		if path == root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	return files, stopped, err
}

// isHidden reports whether a file name is hidden or a temporary editor file.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}
